package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quire/internal/attachment"
)

const (
	fetchTimeout = 30 * time.Second
	maxRedirects = 5
)

var errBlockedAddr = errors.New("address not allowed")

type uploadResult struct {
	SavedPath     string `json:"savedPath"`
	MarkdownImage string `json:"markdownImage"`
}

// asset is a downloaded or decoded upload before it is stored.
type asset struct {
	data []byte
	ext  string // derived from the declared MIME type, may be empty
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var a *asset
	if strings.HasPrefix(source, "data:") {
		a, err = parseDataURI(source)
	} else {
		a, err = newFetcher().fetch(ctx, source)
	}
	if err != nil {
		return mcp.NewToolResultError("upload_asset: " + err.Error()), nil
	}

	name := req.GetString("filename", "")
	if name == "" {
		name = filenameFromURL(source, a.ext)
	}

	saved, err := attachment.Save(s.svc.Store(), name, a.data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("asset uploaded", slog.String("path", saved.Path), slog.Int64("size", saved.Size))

	out, _ := json.Marshal(uploadResult{SavedPath: saved.URL, MarkdownImage: saved.Markdown})
	return mcp.NewToolResultText(string(out)), nil
}

// parseDataURI decodes data:<mime>;base64,<payload>. Only base64 payloads
// of an attachment MIME type are accepted.
func parseDataURI(uri string) (*asset, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("data URI has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, errors.New("data URI must be base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip the padding.
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("decode data URI: %w", err)
		}
	}

	ext := attachment.ExtForMIME(mimeType)
	if ext == "" {
		return nil, fmt.Errorf("data URI type %q is not an allowed attachment", mimeType)
	}
	return &asset{data: data, ext: ext}, nil
}

// fetcher downloads remote assets. Connections to loopback, link-local and
// unspecified addresses are refused at dial time, so redirects and DNS
// answers cannot reach them either.
type fetcher struct {
	client *http.Client
}

func newFetcher() *fetcher {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: refusePrivateDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &fetcher{client: &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}}
}

func (f *fetcher) fetch(ctx context.Context, raw string) (*asset, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme %q not supported", u.Scheme)
	}
	if addr, err := netip.ParseAddr(u.Hostname()); err == nil && blockedAddr(addr) {
		return nil, fmt.Errorf("%s: %w", u.Hostname(), errBlockedAddr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, attachment.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(data) > attachment.MaxSize {
		return nil, fmt.Errorf("download larger than %d bytes", attachment.MaxSize)
	}
	return &asset{data: data, ext: attachment.ExtForMIME(resp.Header.Get("Content-Type"))}, nil
}

func refusePrivateDial(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	if blockedAddr(ap.Addr()) {
		return fmt.Errorf("dial %s: %w", address, errBlockedAddr)
	}
	return nil
}

// blockedAddr covers cloud metadata endpoints, which live on link-local.
func blockedAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsLoopback() || a.IsLinkLocalUnicast() || a.IsUnspecified()
}

// filenameFromURL returns the last path segment of an http(s) URL when it
// carries an extension, otherwise a random name ending in ext (".bin" when
// ext is empty).
func filenameFromURL(source, ext string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "data" {
		if name := path.Base(u.Path); strings.Contains(name, ".") && name != "." {
			return name
		}
	}
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}
