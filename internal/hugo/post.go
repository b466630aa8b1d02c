package hugo

import (
	"strings"
	"time"
)

// IndexFile is the page bundle entry file name.
const IndexFile = "index.md"

// DateLayout is RFC 3339 with a numeric offset, never "Z".
const DateLayout = "2006-01-02T15:04:05-07:00"

const fallbackSlug = "untitled"

// Post is a scaffolded blog post.
type Post struct {
	Path    string
	Slug    string
	Content string
}

// GenerateBlogPost builds the page bundle path and frontmatter for a new
// draft post dated now. The path is [parent/]YYYY/MM/DD/<slug>/index.md;
// parent is joined verbatim so that callers still validate it.
func GenerateBlogPost(title, parent string, now time.Time) Post {
	slug := Slugify(title)
	if slug == "" {
		slug = fallbackSlug
	}

	rel := now.Format("2006/01/02") + "/" + slug + "/" + IndexFile
	if p := strings.Trim(parent, "/"); p != "" {
		rel = p + "/" + rel
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: " + quote(title) + "\n")
	b.WriteString("slug: " + quote(slug) + "\n")
	b.WriteString("date: " + now.Format(DateLayout) + "\n")
	b.WriteString("draft: true\n")
	b.WriteString("tags: []\n")
	b.WriteString("---\n\n")

	return Post{Path: rel, Slug: slug, Content: b.String()}
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r\n", " ", "\n", " ", "\r", " ")

// quote renders s as a YAML double-quoted scalar.
func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
