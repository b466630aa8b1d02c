package api

import (
	"github.com/starford/quire/internal/attachment"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/vault"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent"`
}

// CreateBlogPostRequest is the request body for scaffolding a blog post.
type CreateBlogPostRequest struct {
	Title  string `json:"title" example:"Hello World" validate:"required"`
	Parent string `json:"parent,omitempty" example:"content/posts"`
}

// CreateFolderRequest is the request body for creating a folder.
type CreateFolderRequest struct {
	Path string `json:"path" example:"projects/2026" validate:"required"`
}

// MoveRequest is the request body for moving a note or folder.
type MoveRequest struct {
	From string `json:"from" example:"drafts/a.md" validate:"required"`
	To   string `json:"to" example:"posts/a.md" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = vault.NoteDetail

// FolderResponse is returned after a folder mutation.
type FolderResponse struct {
	Path string `json:"path" example:"projects/2026" validate:"required"`
	Name string `json:"name" example:"2026" validate:"required"`
}

// TreeResponse wraps tree listings.
type TreeResponse struct {
	Nodes []*models.TreeNode `json:"nodes" validate:"required"`
}

// FileSearchResponse wraps filename search results.
type FileSearchResponse struct {
	Results []search.FileMatch `json:"results" validate:"required"`
}

// ContentSearchResponse wraps content search results.
type ContentSearchResponse struct {
	Results []search.ContentMatch `json:"results" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse = attachment.Saved
