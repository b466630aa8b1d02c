package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/testutil"
	"github.com/starford/quire/internal/tree"
	"github.com/starford/quire/internal/vault"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	logger := testutil.Logger()
	tr := tree.New(store, tree.WithLogger(logger))
	svc := vault.NewService(store, tr,
		vault.WithLogger(logger),
		vault.WithBlogRoot("posts"),
		vault.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	engine := search.New(store, tr, search.Config{}, logger)
	return New(svc, engine, logger, "test"), dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_tree":         srv.listTree,
		"read_note":         srv.readNote,
		"create_note":       srv.createNote,
		"write_note":        srv.writeNote,
		"create_blog_post":  srv.createBlogPost,
		"create_folder":     srv.createFolder,
		"search_files":      srv.searchFiles,
		"search_content":    srv.searchContent,
		"get_note_contract": srv.getNoteContract,
		"upload_asset":      srv.uploadAsset,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"path":    "./test.md",
		"content": "# Test\nHello",
	})
	if text := resultText(r); text != "created: test.md" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "test.md"})
	want := "checksum: " + checksum.Sum([]byte("# Test\nHello")) + "\n\n# Test\nHello"
	if text := resultText(r); text != want {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateNote_Rejected(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteFile(t, dir, "taken.md", "original")

	for _, path := range []string{"taken.md", "../escape.md", "notes.txt"} {
		r := callTool(t, srv, "create_note", map[string]interface{}{"path": path, "content": "x"})
		if !r.IsError {
			t.Errorf("create %q: expected error, got %q", path, resultText(r))
		}
	}
	if testutil.ReadFile(t, dir, "taken.md") != "original" {
		t.Error("existing note overwritten")
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError || !strings.Contains(resultText(r), "does not exist") {
		t.Errorf("read missing = %q", resultText(r))
	}
}

func TestWriteNote(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteFile(t, dir, "n.md", "v1")
	stale := checksum.Sum([]byte("v0"))

	r := callTool(t, srv, "write_note", map[string]interface{}{"path": "n.md", "content": "v2", "if_match": stale})
	if !r.IsError {
		t.Fatal("stale if_match accepted")
	}

	r = callTool(t, srv, "write_note", map[string]interface{}{
		"path": "n.md", "content": "v2", "if_match": checksum.Sum([]byte("v1")),
	})
	if r.IsError {
		t.Fatalf("write failed: %s", resultText(r))
	}
	if got := testutil.ReadFile(t, dir, "n.md"); got != "v2" {
		t.Errorf("content = %q", got)
	}

	r = callTool(t, srv, "write_note", map[string]interface{}{"path": "missing.md", "content": "x"})
	if !r.IsError || testutil.Exists(dir, "missing.md") {
		t.Error("write created a missing note")
	}
}

func TestListTree(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteFile(t, dir, "a.md", "a")
	testutil.WriteFile(t, dir, "dir/b.md", "b")

	r := callTool(t, srv, "list_tree", map[string]interface{}{})
	var nodes []models.TreeNode
	if err := json.Unmarshal([]byte(resultText(r)), &nodes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nodes) != 2 || nodes[0].Path != "dir" || nodes[1].Path != "a.md" {
		t.Errorf("nodes = %+v", nodes)
	}

	r = callTool(t, srv, "list_tree", map[string]interface{}{"folder": "dir"})
	nodes = nil
	_ = json.Unmarshal([]byte(resultText(r)), &nodes)
	if len(nodes) != 1 || nodes[0].Path != "dir/b.md" {
		t.Errorf("children = %+v", nodes)
	}

	r = callTool(t, srv, "list_tree", map[string]interface{}{"folder": "missing"})
	if !r.IsError {
		t.Error("expected error for missing folder")
	}
}

func TestCreateFolder(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "create_folder", map[string]interface{}{"path": "a/b"})
	if r.IsError || resultText(r) != "created: a/b" || !testutil.Exists(dir, "a/b") {
		t.Fatalf("create folder = %q", resultText(r))
	}
	r = callTool(t, srv, "create_folder", map[string]interface{}{"path": "a/b"})
	if !r.IsError {
		t.Error("existing folder accepted")
	}
}

func TestCreateBlogPost(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "create_blog_post", map[string]interface{}{"title": "Café Crème"})
	want := "posts/2026/01/02/cafe-creme/index.md"
	if resultText(r) != "created: "+want || !testutil.Exists(dir, want) {
		t.Errorf("blog post = %q", resultText(r))
	}

	r = callTool(t, srv, "create_blog_post", map[string]interface{}{"title": "Other", "parent": "drafts"})
	if resultText(r) != "created: drafts/2026/01/02/other/index.md" {
		t.Errorf("blog post with parent = %q", resultText(r))
	}
}

func TestSearchTools(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteFile(t, dir, "go/one.md", "Goroutines\nchannels")
	testutil.WriteFile(t, dir, "go/two.md", "more goroutines")

	r := callTool(t, srv, "search_content", map[string]interface{}{"query": "goroutines"})
	var content []search.ContentMatch
	if err := json.Unmarshal([]byte(resultText(r)), &content); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(content) != 2 || content[0].Path != "go/one.md" {
		t.Errorf("content = %+v", content)
	}

	r = callTool(t, srv, "search_content", map[string]interface{}{"query": "goroutines", "case_sensitive": true})
	content = nil
	_ = json.Unmarshal([]byte(resultText(r)), &content)
	if len(content) != 1 || content[0].Path != "go/two.md" {
		t.Errorf("case-sensitive content = %+v", content)
	}

	r = callTool(t, srv, "search_files", map[string]interface{}{"query": `^go/t\w+\.md$`, "regex": true})
	var files []search.FileMatch
	_ = json.Unmarshal([]byte(resultText(r)), &files)
	if len(files) != 1 || files[0].Path != "go/two.md" {
		t.Errorf("files = %+v", files)
	}

	r = callTool(t, srv, "search_files", map[string]interface{}{"query": "go", "limit": float64(1)})
	files = nil
	_ = json.Unmarshal([]byte(resultText(r)), &files)
	if len(files) != 1 {
		t.Errorf("limited files = %+v", files)
	}

	r = callTool(t, srv, "search_content", map[string]interface{}{"query": "(", "regex": true})
	if !r.IsError {
		t.Error("invalid regex accepted")
	}
}

func TestUploadAsset_DataURI(t *testing.T) {
	srv, dir := testServer(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": uri, "filename": "chart.png"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.SavedPath != "/attachments/chart.png" || res.MarkdownImage != "![chart.png](/attachments/chart.png)" {
		t.Errorf("result = %+v", res)
	}
	if testutil.ReadFile(t, dir, "attachments/chart.png") != string(png) {
		t.Error("content mismatch")
	}
}

func TestUploadAsset_Rejected(t *testing.T) {
	srv, _ := testServer(t)
	for _, u := range []string{
		"http://127.0.0.1/x.png",
		"http://169.254.169.254/latest/meta-data",
		"ftp://example.com/x.png",
		"data:image/png,notbase64",
		"data:text/plain;base64,aGVsbG8=",
	} {
		r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": u})
		if !r.IsError {
			t.Errorf("upload %q accepted", u)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://example.com/img/photo.jpg?x=1", ".png"); got != "photo.jpg" {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("https://example.com/download", ".png"); !strings.HasSuffix(got, ".png") || len(got) != 36+4 {
		t.Errorf("fallback = %q", got)
	}
	if got := filenameFromURL("data:image/gif;base64,xx", ""); !strings.HasSuffix(got, ".bin") {
		t.Errorf("data URI = %q", got)
	}
}

func TestNoteFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("contents = %v, %v", contents, err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != NoteFormatURI || tc.Text != NoteFormatContract {
		t.Errorf("resource = %+v", contents[0])
	}
	if resultText(callTool(t, srv, "get_note_contract", nil)) != NoteFormatContract {
		t.Error("contract tool mismatch")
	}
}
