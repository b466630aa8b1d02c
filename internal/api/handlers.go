package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/vault"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *vault.Service
	search *search.Engine
}

// NewHandler creates a new Handler.
func NewHandler(svc *vault.Service, engine *search.Engine) *Handler {
	return &Handler{svc: svc, search: engine}
}

// wildcardPath extracts the vault path from the URL (everything after the
// route prefix). Supports encoded slashes from OpenAPI clients
// (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// writeNote responds with the detail of n and its checksum as ETag.
func writeNote(w http.ResponseWriter, status int, n *vault.Note) {
	d, ok := n.Detail()
	if !ok {
		writeEntityErrors(w, "note detail", n.Errors())
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, status, d)
}

// Tree handles GET /api/tree.
//
//	@Summary		Get the content tree
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	TreeResponse
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Tree().List(r.Context())
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Nodes: nodes})
}

// FolderChildren handles GET /api/tree/*.
//
//	@Summary		List the children of a folder
//	@Tags			tree
//	@Produce		json
//	@Param			path	path		string	true	"Folder path"
//	@Success		200		{object}	TreeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/tree/{path} [get]
func (h *Handler) FolderChildren(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.FindFolder(wildcardPath(r))
	if err != nil {
		writeError(w, "folder children", err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Nodes: f.Children(r.Context())})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.FindNote(wildcardPath(r))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n := h.svc.NewNote(req.Path)
	if !n.Create(req.Content) {
		writeEntityErrors(w, "create note", n.Errors())
		return
	}
	writeNote(w, http.StatusCreated, n)
}

// CreateBlogPost handles POST /api/notes/blog.
//
//	@Summary		Scaffold a dated Hugo blog post
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBlogPostRequest	true	"Post title and parent folder"
//	@Success		201		{object}	NoteDetail
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/notes/blog [post]
func (h *Handler) CreateBlogPost(w http.ResponseWriter, r *http.Request) {
	var req CreateBlogPostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, ok := h.svc.CreateBlogPost(req.Title, req.Parent)
	if !ok {
		writeEntityErrors(w, "create blog post", n.Errors())
		return
	}
	writeNote(w, http.StatusCreated, n)
}

// UpdateNote handles PUT /api/notes/*.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Note path"
//	@Param			If-Match	header		string				false	"Checksum (ETag) of the content being replaced"
//	@Param			body		body		UpdateNoteRequest	true	"Updated content"
//	@Success		200			{object}	NoteDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/notes/{path} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n := h.svc.NewNote(wildcardPath(r))
	if !n.Write(req.Content, r.Header.Get("If-Match")) {
		writeEntityErrors(w, "update note", n.Errors())
		return
	}
	writeNote(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	n := h.svc.NewNote(wildcardPath(r))
	if !n.Destroy() {
		writeEntityErrors(w, "delete note", n.Errors())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /api/notes/move.
//
//	@Summary		Move or rename a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Source and destination"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/notes/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n := h.svc.NewNote(req.From)
	if !n.Rename(req.To) {
		writeEntityErrors(w, "move note", n.Errors())
		return
	}
	writeNote(w, http.StatusOK, n)
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create a folder and any missing parents
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFolderRequest	true	"Folder to create"
//	@Success		201		{object}	FolderResponse
//	@Failure		409		{object}	errResponse
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f := h.svc.NewFolder(req.Path)
	if !f.Create() {
		writeEntityErrors(w, "create folder", f.Errors())
		return
	}
	writeJSON(w, http.StatusCreated, FolderResponse{Path: f.Path(), Name: f.Name()})
}

// DeleteFolder handles DELETE /api/folders/*.
//
//	@Summary		Delete an empty folder
//	@Tags			folders
//	@Param			path	path	string	true	"Folder path"
//	@Success		204		"Folder deleted"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/folders/{path} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	f := h.svc.NewFolder(wildcardPath(r))
	if !f.Destroy() {
		writeEntityErrors(w, "delete folder", f.Errors())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveFolder handles POST /api/folders/move.
//
//	@Summary		Move or rename a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Source and destination"
//	@Success		200		{object}	FolderResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/folders/move [post]
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f := h.svc.NewFolder(req.From)
	if !f.Rename(req.To) {
		writeEntityErrors(w, "move folder", f.Errors())
		return
	}
	writeJSON(w, http.StatusOK, FolderResponse{Path: f.Path(), Name: f.Name()})
}

func searchOptions(r *http.Request) search.Options {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return search.Options{
		Regex:         queryBool(r, "regex"),
		CaseSensitive: queryBool(r, "case"),
		Limit:         limit,
	}
}

// SearchFiles handles GET /api/search/files.
//
//	@Summary		Match notes and folders by path
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			regex	query		bool	false	"Treat q as a regular expression"
//	@Param			case	query		bool	false	"Case-sensitive match"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	FileSearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search/files [get]
func (h *Handler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	results, err := h.search.Files(r.Context(), r.URL.Query().Get("q"), searchOptions(r))
	if err != nil {
		writeError(w, "search files", err)
		return
	}
	writeJSON(w, http.StatusOK, FileSearchResponse{Results: results})
}

// SearchContent handles GET /api/search/content.
//
//	@Summary		Match lines of note content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			regex	query		bool	false	"Treat q as a regular expression"
//	@Param			case	query		bool	false	"Case-sensitive match"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	ContentSearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search/content [get]
func (h *Handler) SearchContent(w http.ResponseWriter, r *http.Request) {
	results, err := h.search.Content(r.Context(), r.URL.Query().Get("q"), searchOptions(r))
	if err != nil {
		writeError(w, "search content", err)
		return
	}
	writeJSON(w, http.StatusOK, ContentSearchResponse{Results: results})
}
