package mcpserver

// NoteFormatContract describes the Markdown note format that LLM consumers
// should follow when creating or updating notes.
const NoteFormatContract = `# quire Note Format

Notes are plain Markdown files in the vault directory. The vault is also a
Hugo content tree, so blog posts follow Hugo's page bundle layout.

## Structure

` + "```" + `markdown
---
title: "Human-readable title"   # used as the display title
slug: "human-readable-title"    # Hugo URL slug; kept in sync with the bundle folder
date: 2026-01-15T09:30:00+00:00
draft: true
tags: [go, notes]
---

Body text in standard Markdown. #inline-tags are collected too.
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present it must start on the first line,
   fenced by ` + "`" + `---` + "`" + ` (YAML) or ` + "`" + `+++` + "`" + ` (TOML).
2. **Title** comes from the ` + "`" + `title` + "`" + ` key, or else from the first ` + "`" + `# Heading` + "`" + `.
3. **File paths** end with ` + "`" + `.md` + "`" + ` or ` + "`" + `.markdown` + "`" + `, use forward slashes and stay
   inside the vault. Names starting with a dot are hidden.
4. **Writes** replace the whole file. Pass the checksum from ` + "`" + `read_note` + "`" + ` as
   ` + "`" + `if_match` + "`" + ` to ` + "`" + `write_note` + "`" + ` to avoid losing concurrent edits.
5. **Encoding** is UTF-8 with a trailing newline.

## Blog posts

Use ` + "`" + `create_blog_post` + "`" + ` rather than ` + "`" + `create_note` + "`" + `. It creates
` + "`" + `<parent>/YYYY/MM/DD/<slug>/index.md` + "`" + ` with draft frontmatter. Renaming the bundle
folder later rewrites the ` + "`" + `slug` + "`" + ` key of its ` + "`" + `index.md` + "`" + `.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the note body.
- Assets are stored in the shared ` + "`" + `attachments/` + "`" + ` directory (flat, no sub-folders).
- Reference them with the absolute path: ` + "`" + `![description](/attachments/filename.png)` + "`" + `
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
`
