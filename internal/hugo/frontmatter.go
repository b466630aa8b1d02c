package hugo

import "strings"

const fmDelim = "---"

// UpdateFrontmatterSlug rewrites the first top-level slug key in a leading
// "---" frontmatter block. Every other byte of content is kept, including
// the quoting style of the old value and CRLF line endings. It reports false
// when there is no frontmatter, no slug key, or the slug already equals slug.
func UpdateFrontmatterSlug(content, slug string) (string, bool) {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || trimEOL(lines[0]) != fmDelim {
		return content, false
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if trimEOL(lines[i]) == fmDelim {
			end = i
			break
		}
	}
	if end < 0 {
		// An opening rule with no closing delimiter is body text.
		return content, false
	}

	for i := 1; i < end; i++ {
		line := trimEOL(lines[i])
		updated, ok := rewriteSlugLine(line, slug)
		if !ok {
			continue
		}
		if updated == line {
			return content, false
		}
		lines[i] = updated + lines[i][len(line):]
		return strings.Join(lines, ""), true
	}
	return content, false
}

// trimEOL strips a trailing "\n" or "\r\n".
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// rewriteSlugLine returns line with its slug value replaced, and false when
// line is not a top-level slug key.
func rewriteSlugLine(line, slug string) (string, bool) {
	const key = "slug:"
	if !strings.HasPrefix(line, key) {
		return "", false
	}
	rest := line[len(key):]
	val := strings.TrimLeft(rest, " \t")
	lead := rest[:len(rest)-len(val)]
	if lead == "" {
		lead = " "
	}

	switch {
	case strings.HasPrefix(val, `"`):
		end := closingDouble(val)
		if end < 0 {
			return "", false
		}
		if unescapeDouble(val[1:end]) == slug {
			return line, true
		}
		return key + lead + quote(slug) + val[end+1:], true
	case strings.HasPrefix(val, `'`):
		end := closingSingle(val)
		if end < 0 {
			return "", false
		}
		if strings.ReplaceAll(val[1:end], "''", "'") == slug {
			return line, true
		}
		return key + lead + "'" + strings.ReplaceAll(slug, "'", "''") + "'" + val[end+1:], true
	default:
		bare, tail := val, ""
		if i := strings.Index(val, " #"); i >= 0 {
			bare, tail = val[:i], val[i:]
		}
		trimmed := strings.TrimRight(bare, " \t")
		tail = bare[len(trimmed):] + tail
		if trimmed == slug {
			return line, true
		}
		return key + lead + slug + tail, true
	}
}

// closingDouble returns the index of the closing quote of a double-quoted
// scalar starting at s[0], or -1.
func closingDouble(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// closingSingle returns the index of the closing quote of a single-quoted
// scalar starting at s[0], or -1. A doubled quote is an escape.
func closingSingle(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i
	}
	return -1
}

var unescapeReplacer = strings.NewReplacer(`\\`, `\`, `\"`, `"`)

func unescapeDouble(s string) string {
	return unescapeReplacer.Replace(s)
}
