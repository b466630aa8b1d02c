package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/attachment"
	"github.com/starford/quire/internal/storage"
)

// AttachmentHandler serves and accepts attachment files.
type AttachmentHandler struct {
	store storage.Provider
}

// NewAttachmentHandler creates a handler storing files through store.
func NewAttachmentHandler(store storage.Provider) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, err := attachment.Read(h.store, name)
	if err != nil {
		writeError(w, "serve attachment", err)
		return
	}
	var modTime time.Time
	if info, statErr := h.store.Stat(attachment.Dir + "/" + name); statErr == nil {
		modTime = info.ModTime
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, modTime, bytes.NewReader(data))
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Upload an attachment
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Attachment"
//	@Success		201		{object}	AttachmentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attachment.MaxSize+1<<20)

	if err := r.ParseMultipartForm(attachment.MaxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, attachment.MaxSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	saved, err := attachment.Save(h.store, header.Filename, data)
	if err != nil {
		writeError(w, "upload attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
