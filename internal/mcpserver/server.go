// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes quire tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/vault"
)

// NoteFormatURI is the resource URI of the note format contract.
const NoteFormatURI = "quire://note-format"

// Server wraps the MCP server with quire tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *vault.Service
	search *search.Engine
	logger *slog.Logger
}

// New creates a new MCP server with all quire tools registered.
func New(svc *vault.Service, engine *search.Engine, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, search: engine, logger: logger}

	s.mcp = server.NewMCPServer(
		"quire",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("List notes and folders. Returns the whole tree, or the direct children of a folder."),
		mcp.WithString("folder", mcp.Description("Optional folder path (empty for the whole tree)")),
	), s.listTree)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note at the specified path. Existing notes are never "+
			"overwritten. Content should follow the note format contract (see get_note_contract or the "+
			NoteFormatURI+" resource)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the note format contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("write_note",
		mcp.WithDescription("Replace the content of an existing note. Pass the checksum returned by "+
			"read_note as if_match to fail instead of overwriting concurrent edits."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
		mcp.WithString("if_match", mcp.Description("Optional checksum of the content being replaced")),
	), s.writeNote)

	s.mcp.AddTool(mcp.NewTool("create_blog_post",
		mcp.WithDescription("Scaffold a dated Hugo page bundle (YYYY/MM/DD/slug/index.md) with draft frontmatter."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Post title")),
		mcp.WithString("parent", mcp.Description("Optional folder to create the post under (defaults to the blog root)")),
	), s.createBlogPost)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder and any missing parents."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative folder path")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Find notes and folders whose path matches a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring, or regular expression when regex is set")),
		mcp.WithBoolean("regex", mcp.Description("Treat query as a regular expression")),
		mcp.WithBoolean("case_sensitive", mcp.Description("Match case exactly")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("search_content",
		mcp.WithDescription("Find lines of note content matching a query, with surrounding context."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring, or regular expression when regex is set")),
		mcp.WithBoolean("regex", mcp.Description("Treat query as a regular expression")),
		mcp.WithBoolean("case_sensitive", mcp.Description("Match case exactly")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.searchContent)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image or PDF under attachments/ from an http(s) URL or a base64 data URI. "+
			"Returns a markdownImage snippet ready to paste into a note."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadAsset)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown note format that notes should follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func entityError(errs *vault.Errors) *mcp.CallToolResult {
	return mcp.NewToolResultError(strings.Join(errs.FullMessages(), "; "))
}

func searchOptions(req mcp.CallToolRequest) search.Options {
	return search.Options{
		Regex:         req.GetBool("regex", false),
		CaseSensitive: req.GetBool("case_sensitive", false),
		Limit:         req.GetInt("limit", 0),
	}
}

func (s *Server) listTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := req.GetString("folder", "")
	if folder == "" {
		nodes, err := s.svc.Tree().List(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(nodes)
	}
	f, err := s.svc.FindFolder(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f.Children(ctx))
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := s.svc.NewNote(path)
	d, ok := n.Detail()
	if !ok {
		return entityError(n.Errors()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("checksum: %s\n\n%s", d.Checksum, d.Content)), nil
}

func (s *Server) createNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := s.svc.NewNote(path)
	if !n.Create(content) {
		return entityError(n.Errors()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.Path())), nil
}

func (s *Server) writeNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n := s.svc.NewNote(path)
	if !n.Write(content, req.GetString("if_match", "")) {
		return entityError(n.Errors()), nil
	}
	sum, _ := n.Checksum()
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", n.Path(), sum)), nil
}

func (s *Server) createBlogPost(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := s.svc.CreateBlogPost(title, req.GetString("parent", ""))
	if !ok {
		return entityError(n.Errors()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.Path())), nil
}

func (s *Server) createFolder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := s.svc.NewFolder(path)
	if !f.Create() {
		return entityError(f.Errors()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", f.Path())), nil
}

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.Files(ctx, query, searchOptions(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.Content(ctx, query, searchOptions(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
