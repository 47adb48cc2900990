package blobstore

import (
	"chatapp-backend/internal/apperr"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), 1024)
	if err != nil {
		t.Fatal(err)
	}

	blob, err := s.Put(ctx, strings.NewReader("hello"), "notes.txt", NewPolicy(DefaultAttachmentExtensions, false))
	if err != nil {
		t.Fatal(err)
	}
	ref := blob.Ref
	if !strings.HasSuffix(ref, "_notes.txt") {
		t.Errorf("ref %q should keep the original name", ref)
	}
	if !strings.HasPrefix(blob.ContentType, "text/plain") {
		t.Errorf("content type %q, want text/plain", blob.ContentType)
	}

	f, err := s.Open(ref)
	if err != nil {
		t.Fatal(err)
	}
	content, _ := io.ReadAll(f)
	f.Close()
	if string(content) != "hello" {
		t.Errorf("read back %q", content)
	}

	if err := s.Delete(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Open(ref); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("Open after delete = %v, want NotFound", err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Errorf("second Delete() = %v, want nil", err)
	}
}

func TestPutTooLarge(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 4)
	if err != nil {
		t.Fatal(err)
	}

	policy := NewPolicy([]string{"txt"}, false)
	if _, err := s.Put(context.Background(), strings.NewReader("12345"), "big.txt", policy); err != ErrTooLarge {
		t.Fatalf("Put() = %v, want ErrTooLarge", err)
	}
	if _, err := s.Put(context.Background(), strings.NewReader("1234"), "fits.txt", policy); err != nil {
		t.Fatalf("exact fit rejected: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the fitting file on disk, got %d entries", len(entries))
	}
}

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

func TestPolicy(t *testing.T) {
	attachments := NewPolicy([]string{".TXT", "png", "html"}, false)

	tests := []struct {
		name     string
		policy   Policy
		filename string
		content  string
		ok       bool
	}{
		{"plain text", attachments, "notes.txt", "hello", true},
		{"extension is case insensitive", attachments, "NOTES.TxT", "hello", true},
		{"png attachment", attachments, "cat.png", pngHeader, true},
		{"no extension", attachments, "README", "hello", false},
		{"extension not listed", attachments, "tool.exe", "hello", false},
		{"html allowed by name is still html", attachments, "page.html", "<html><body>hi</body></html>", false},
		{"script hidden in a txt", attachments, "notes.txt", "<script>alert(1)</script>", false},
		{"svg named png", attachments, "logo.png", `<svg xmlns="http://www.w3.org/2000/svg"></svg>`, false},
		{"image", ImagePolicy, "avatar.png", pngHeader, true},
		{"text is not an image", ImagePolicy, "avatar.png", "hello", false},
		{"image policy rejects other extensions", ImagePolicy, "avatar.txt", pngHeader, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			s, err := New(dir, 1024)
			if err != nil {
				t.Fatal(err)
			}

			_, err = s.Put(context.Background(), strings.NewReader(tc.content), tc.filename, tc.policy)
			if tc.ok && err != nil {
				t.Fatalf("Put(%q) = %v, want nil", tc.filename, err)
			}
			if !tc.ok {
				if !apperr.IsKind(err, apperr.ValidationFailed) {
					t.Fatalf("Put(%q) = %v, want ValidationFailed", tc.filename, err)
				}
				if entries, _ := os.ReadDir(dir); len(entries) != 0 {
					t.Errorf("rejected upload left %d entries on disk", len(entries))
				}
			}
		})
	}
}

func TestInline(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"image/webp; q=1", true},
		{"image/svg+xml", false},
		{"text/html; charset=utf-8", false},
		{"text/plain", false},
		{"application/pdf", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.contentType, func(t *testing.T) {
			if got := Inline(tc.contentType); got != tc.want {
				t.Errorf("Inline(%q) = %v, want %v", tc.contentType, got, tc.want)
			}
		})
	}
}

func TestRejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir(), 1024)
	if err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{"", "../secret", "a/b", ".hidden", filepath.Join("..", "x")} {
		if _, err := s.Open(ref); !apperr.IsKind(err, apperr.ValidationFailed) {
			t.Errorf("Open(%q) = %v, want ValidationFailed", ref, err)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.png", "photo.png"},
		{"../../etc/passwd", "passwd"},
		{"C:\\Users\\me\\cat pic.jpg", "cat_pic.jpg"},
		{"..", "file"},
		{"ümlaut.txt", "_mlaut.txt"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestURLRoundTrip(t *testing.T) {
	if got := RefFromURL(URL("abc_x.png")); got != "abc_x.png" {
		t.Errorf("got %q", got)
	}
	if got := RefFromURL("https://elsewhere/x.png"); got != "" {
		t.Errorf("foreign url gave %q", got)
	}
}
