// Package models defines the domain types for quire.
package models

import "time"

// NodeType tags an entry of the content tree.
type NodeType string

// Node types.
const (
	TypeFolder NodeType = "folder"
	TypeNote   NodeType = "note"
	TypeFile   NodeType = "file" // non-markdown file, e.g. an attachment
)

// TreeNode is one entry of the materialized content tree.
// Children is nil for notes and non-nil for folders.
type TreeNode struct {
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	Type     NodeType    `json:"type"`
	Children []*TreeNode `json:"children,omitempty"`
}

// IsFolder reports whether n is a folder node.
func (n *TreeNode) IsFolder() bool { return n.Type == TypeFolder }

// Entry is a direct child returned by a directory listing.
type Entry struct {
	Name string   `json:"name"`
	Path string   `json:"path"`
	Type NodeType `json:"type"`
}

// FileInfo holds the stat fields exposed by the store.
type FileInfo struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	IsDir   bool      `json:"is_dir"`
}

// NoteMetadata is a lightweight view of a note used in listings and responses.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
