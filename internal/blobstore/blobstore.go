package blobstore

import (
	"bytes"
	"chatapp-backend/internal/apperr"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// URLPrefix is where the router serves stored blobs from
const URLPrefix = "/uploads/"

// sniffLen is how much of an upload is read to detect its real type
const sniffLen = 3072

var ErrTooLarge = apperr.Invalid("File is too large")

var (
	imageExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}
	imageTypes      = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

	// browsers run these when served from our origin, whatever the extension says
	activeTypes = []string{
		"text/html", "application/xhtml+xml", "image/svg+xml", "text/xml", "application/xml",
		"text/javascript", "application/javascript", "application/x-javascript",
	}

	DefaultAttachmentExtensions = append(slices.Clone(imageExtensions),
		"txt", "pdf", "zip", "mp3", "ogg", "wav", "mp4", "webm")
)

// Policy is the set of uploads a caller accepts
type Policy struct {
	extensions map[string]struct{}
	imagesOnly bool
}

// ImagePolicy is used for avatars and server icons
var ImagePolicy = NewPolicy(imageExtensions, true)

func NewPolicy(extensions []string, imagesOnly bool) Policy {
	p := Policy{extensions: make(map[string]struct{}, len(extensions)), imagesOnly: imagesOnly}
	for _, ext := range extensions {
		p.extensions[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")] = struct{}{}
	}
	return p
}

func extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func (p Policy) check(filename string, detected *mimetype.MIME) error {
	ext := extension(filename)
	if ext == "" {
		return apperr.Invalid("Files without an extension are not allowed")
	}
	if _, allowed := p.extensions[ext]; !allowed {
		return apperr.Invalid(fmt.Sprintf("Files of type .%s are not allowed", ext))
	}

	for m := detected; m != nil; m = m.Parent() {
		if slices.ContainsFunc(activeTypes, m.Is) {
			return apperr.Invalid("File content is not allowed")
		}
	}
	if p.imagesOnly && !slices.ContainsFunc(imageTypes, detected.Is) {
		return apperr.Invalid("Only png, jpeg, gif and webp images are allowed")
	}
	return nil
}

// Blob is a stored upload, ContentType is the sniffed type of its content
type Blob struct {
	Ref         string
	ContentType string
}

// Store keeps uploaded files in one flat directory. A reference is the
// stored file name, a random uuid followed by the sanitized original name.
type Store struct {
	dir      string
	maxBytes int64
}

func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Put stores r when both the extension of filename and the sniffed content
// pass the policy
func (s *Store) Put(ctx context.Context, r io.Reader, filename string, policy Policy) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Blob{}, err
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if err := policy.check(filename, detected); err != nil {
		return Blob{}, err
	}

	ref := uuid.NewString() + "_" + Sanitize(filename)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Blob{}, err
	}
	defer os.Remove(tmp.Name())

	// one extra byte tells an exact fit apart from an oversized file
	written, err := io.Copy(tmp, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Blob{}, err
	}
	if written > s.maxBytes {
		return Blob{}, ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, ref)); err != nil {
		return Blob{}, err
	}
	return Blob{Ref: ref, ContentType: detected.String()}, nil
}

func (s *Store) Open(ref string) (*os.File, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFoundf("File not found")
	}
	return f, err
}

// Delete is idempotent, deleting a missing blob is not an error
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(ref)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", apperr.Invalid(fmt.Sprintf("Invalid file reference %q", ref))
	}
	return filepath.Join(s.dir, ref), nil
}

func URL(ref string) string {
	if ref == "" {
		return ""
	}
	return URLPrefix + ref
}

// RefFromURL is the inverse of URL, foreign urls give an empty ref
func RefFromURL(url string) string {
	ref, ok := strings.CutPrefix(url, URLPrefix)
	if !ok {
		return ""
	}
	return ref
}

func ContentType(filename string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Inline reports whether a blob of this type may be shown in the browser,
// everything else is served as a download
func Inline(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && slices.Contains(imageTypes, mediaType)
}

// Sanitize keeps letters, digits, dots, dashes and underscores of the base name
func Sanitize(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.TrimLeft(b.String(), ".")
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	if name == "" {
		return "file"
	}
	return name
}
