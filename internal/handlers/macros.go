package handlers

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/blobstore"
	"chatapp-backend/internal/validator"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const (
	maxFilesPerMessage = 10
	maxMemory          = 32 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		h.sugar.Error(err)
	}
}

func (h *Handler) respondMessage(w http.ResponseWriter, message string) {
	h.respond(w, http.StatusOK, map[string]string{"message": message})
}

// writeError answers with {"error": message}, unexpected failures are logged
// and never show their cause
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.PersistenceFailure {
		h.sugar.Error(err)
	} else {
		h.sugar.Debug(err)
	}

	if err := writeJSON(w, apperr.HTTPStatus(kind), map[string]string{"error": apperr.Message(err)}); err != nil {
		h.sugar.Error(err)
	}
}

// pathID parses a snowflake from the url, "serverID" failing gives "Invalid server ID"
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("Invalid " + strings.TrimSuffix(name, "ID") + " ID")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperr.Invalid("Invalid " + name)
	}
	return v, nil
}

// decodeBody reads a JSON body and runs its validate tags
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.ValidationFailed, "Invalid request body", err)
	}
	return validator.Struct(v)
}

// parseForm accepts both url encoded and multipart bodies
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes*maxFilesPerMessage+maxMemory)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return blobstore.ErrTooLarge
		}
		return apperr.Wrap(apperr.ValidationFailed, "Invalid form", err)
	}
	return nil
}

// formValue tells an absent field apart from an empty one
func formValue(r *http.Request, name string) (string, bool) {
	values, exists := r.Form[name]
	if !exists || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func formFiles(r *http.Request, names ...string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var files []*multipart.FileHeader
	for _, name := range names {
		files = append(files, r.MultipartForm.File[name]...)
	}
	return files
}

// storeUpload saves one image form file and returns its url, "" when none was sent
func (h *Handler) storeUpload(ctx context.Context, r *http.Request, field string) (string, error) {
	files := formFiles(r, field)
	if len(files) == 0 {
		return "", nil
	}
	blob, err := h.storeFile(ctx, files[0], blobstore.ImagePolicy)
	if err != nil {
		return "", err
	}
	return blobstore.URL(blob.Ref), nil
}

func (h *Handler) storeFile(ctx context.Context, header *multipart.FileHeader, policy blobstore.Policy) (blobstore.Blob, error) {
	file, err := header.Open()
	if err != nil {
		return blobstore.Blob{}, apperr.Wrap(apperr.ValidationFailed, "Invalid upload", err)
	}
	defer file.Close()

	blob, err := h.blobs.Put(ctx, file, header.Filename, policy)
	if err != nil {
		if apperr.KindOf(err) != apperr.PersistenceFailure {
			return blobstore.Blob{}, err
		}
		return blobstore.Blob{}, apperr.Persistence(err)
	}
	return blob, nil
}

// deleteBlobs runs after the database change was committed, a failure
// only leaves an orphaned file behind
func (h *Handler) deleteBlobs(ctx context.Context, urls ...string) {
	for _, url := range urls {
		ref := blobstore.RefFromURL(url)
		if ref == "" {
			continue
		}
		if err := h.blobs.Delete(ctx, ref); err != nil {
			h.sugar.Errorf("Failed to delete blob [%s]: %v", ref, err)
		}
	}
}

// channelIDs lists the server's channels for room cleanup, a failed lookup
// still cleans up the server room
func (h *Handler) channelIDs(ctx context.Context, serverID int64) []int64 {
	channels, err := h.store.Channels(ctx, serverID)
	if err != nil {
		h.sugar.Errorf("Failed to list channels of server ID [%d]: %v", serverID, err)
		return nil
	}

	ids := make([]int64, 0, len(channels))
	for _, channel := range channels {
		ids = append(ids, channel.ID)
	}
	return ids
}
