// Package attachment stores binary assets under the vault's attachments
// folder.
package attachment

import (
	"bytes"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/storage"
)

// Dir is the vault folder attachments live in.
const Dir = "attachments"

// MaxSize bounds the size of a single attachment.
const MaxSize = 10 << 20

var (
	allowedExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true, ".pdf": true,
	}

	mimeToExt = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/svg+xml":   ".svg",
		"application/pdf": ".pdf",
	}

	unsafeRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Saved describes a stored attachment.
type Saved struct {
	Name     string `json:"name"`
	Path     string `json:"path"` // vault-relative
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Markdown string `json:"markdown"`
}

// ExtForMIME returns the file extension for an allowed media type, or "".
func ExtForMIME(mime string) string {
	return mimeToExt[strings.TrimSpace(strings.Split(mime, ";")[0])]
}

// Sanitize reduces name to a plain file name of safe characters. An empty
// result is replaced by a random name.
func Sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.New().String()
	}
	return name
}

// Save validates data against the extension of name and writes it under
// Dir. An existing attachment is never replaced: on a name collision a short
// random suffix is added before the extension.
func Save(store storage.Provider, name string, data []byte) (*Saved, error) {
	name = Sanitize(name)
	ext := strings.ToLower(path.Ext(name))
	if !allowedExtensions[ext] {
		return nil, apperr.Newf(apperr.KindInvalidPath, "attachment", name, "unsupported extension "+ext)
	}
	if len(data) > MaxSize {
		return nil, apperr.Newf(apperr.KindInvalidPath, "attachment", name, fmt.Sprintf("larger than %d bytes", MaxSize))
	}
	if err := checkContent(data, ext); err != nil {
		return nil, apperr.Newf(apperr.KindInvalidPath, "attachment", name, err.Error())
	}

	p, err := create(store, name, data)
	if err != nil {
		return nil, err
	}
	final := path.Base(p)
	url := "/" + p
	return &Saved{
		Name:     final,
		Path:     p,
		URL:      url,
		Size:     int64(len(data)),
		Markdown: fmt.Sprintf("![%s](%s)", final, url),
	}, nil
}

// Read returns the attachment called name.
func Read(store storage.Provider, name string) ([]byte, error) {
	if name == "" || name != Sanitize(name) {
		return nil, apperr.Newf(apperr.KindInvalidPath, "attachment", name, "not a plain file name")
	}
	return store.Read(Dir + "/" + name)
}

// create stores data under Dir, retrying with a suffixed name while the
// chosen path is taken.
func create(store storage.Provider, name string, data []byte) (string, error) {
	p := Dir + "/" + name
	for range 3 {
		err := store.Create(p, data)
		if err == nil {
			return p, nil
		}
		if apperr.KindOf(err) != apperr.KindAlreadyExists {
			return "", err
		}
		ext := path.Ext(name)
		p = Dir + "/" + strings.TrimSuffix(name, ext) + "-" + uuid.New().String()[:8] + ext
	}
	return "", apperr.New(apperr.KindAlreadyExists, "attachment", p)
}

// checkContent verifies that data looks like a file of type ext.
func checkContent(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data[:min(len(data), 1024)]
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content is not an SVG image")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	got := ExtForMIME(detected)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return fmt.Errorf("content does not match extension %s (detected %s)", ext, detected)
	}
	return nil
}
