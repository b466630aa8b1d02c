package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/vault"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, is mounted at GET /events.
func NewRouter(svc *vault.Service, engine *search.Engine, events http.Handler) chi.Router {
	h := NewHandler(svc, engine)
	ah := NewAttachmentHandler(svc.Store())

	r := chi.NewRouter()

	// Tree.
	r.Get("/tree", h.Tree)
	r.Get("/tree/*", h.FolderChildren)

	// Notes.
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/blog", h.CreateBlogPost)
	r.Post("/notes/move", h.MoveNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Folders.
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/move", h.MoveFolder)
	r.Delete("/folders/*", h.DeleteFolder)

	// Search.
	r.Get("/search/files", h.SearchFiles)
	r.Get("/search/content", h.SearchContent)

	// Attachments.
	r.Post("/attachments", ah.Upload)
	r.Get("/attachments/{filename}", ah.ServeFile)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
