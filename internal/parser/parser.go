// Package parser extracts frontmatter, title and tags from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Frontmatter formats.
const (
	FormatNone = ""
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Format      string
	Body        string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, tags and title from raw Markdown bytes.
// Malformed frontmatter is not an error: the whole input is treated as body.
func Parse(data []byte) (*Result, error) {
	fm, format, body := splitFrontmatter(data)

	return &Result{
		Frontmatter: fm,
		Format:      format,
		Body:        body,
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates a leading YAML (---) or TOML (+++) block from the
// Markdown body. Without a well-formed block the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")

	var delim, format string
	switch {
	case bytes.HasPrefix(trimmed, []byte("---")):
		delim, format = "---", FormatYAML
	case bytes.HasPrefix(trimmed, []byte("+++")):
		delim, format = "+++", FormatTOML
	default:
		return nil, FormatNone, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, FormatNone, string(data)
	}

	block := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	var err error
	if format == FormatTOML {
		err = toml.Unmarshal(block, &fm)
	} else {
		err = yaml.Unmarshal(block, &fm)
	}
	if err != nil {
		return nil, FormatNone, string(data)
	}
	return fm, format, body
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if items, ok := fm["tags"].([]interface{}); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the text
// of the first level-1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}

	src := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			var b bytes.Buffer
			plainText(h, src, &b)
			title = strings.TrimSpace(b.String())
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func plainText(n ast.Node, src []byte, b *bytes.Buffer) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		default:
			plainText(c, src, b)
		}
	}
}
