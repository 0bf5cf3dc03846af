package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/eventhub/internal/blob"
)

// UploadHandler stores event images.
type UploadHandler struct {
	store  blob.Store
	logger *slog.Logger
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(store blob.Store, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{store: store, logger: logger}
}

// Upload handles POST /api/upload
// Expects a multipart form with an "image" file of at most 5MB. The type is
// sniffed from the content, not taken from the client.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxImageSize+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 5MB")
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, blob.MaxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	if len(data) > blob.MaxImageSize {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 5MB")
		return
	}

	url, err := h.store.Put(r.Context(), data, http.DetectContentType(data))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"image_url": url})
}
