// Package document defines the canonical per-episode document grammar.
// Assemble and Parse share it, so what the writer emits the reader can
// always recover without ad-hoc string slicing.
package document

import (
	"fmt"
	"strings"
)

// Section names, in the fixed order they appear in a document.
const (
	SectionDescription = "Description"
	SectionLinks       = "Links"
	SectionTranscript  = "Transcript"
)

var sectionOrder = []string{SectionDescription, SectionLinks, SectionTranscript}

// Meta is the document header.
type Meta struct {
	Title       string
	PublishedAt string
}

// Document is an episode document as an ordered set of named sections.
// A section with empty content is absent, never emitted empty.
type Document struct {
	Meta     Meta
	Sections map[string]string

	// extras are non-canonical section names (hand-added headings) in the
	// order they were first set, so they survive a rewrite in place.
	extras []string
}

// New returns an empty document for the given header.
func New(meta Meta) *Document {
	return &Document{
		Meta:     meta,
		Sections: make(map[string]string),
	}
}

// Set stores a section body. Empty content removes the section.
func (d *Document) Set(name, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		delete(d.Sections, name)
		d.removeExtra(name)
		return
	}
	if _, exists := d.Sections[name]; !exists && !isCanonical(name) {
		d.extras = append(d.extras, name)
	}
	d.Sections[name] = content
}

func isCanonical(name string) bool {
	for _, n := range sectionOrder {
		if n == name {
			return true
		}
	}
	return false
}

func (d *Document) removeExtra(name string) {
	for i, n := range d.extras {
		if n == name {
			d.extras = append(d.extras[:i], d.extras[i+1:]...)
			return
		}
	}
}

// Get returns a section body, or "" when absent.
func (d *Document) Get(name string) string {
	return d.Sections[name]
}

// Has reports whether the section is present with non-empty content.
func (d *Document) Has(name string) bool {
	return d.Sections[name] != ""
}

// Render produces the document text. Rendering the same document twice
// yields byte-identical output, so unchanged documents never appear
// modified between runs.
func (d *Document) Render() string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(strings.TrimSpace(d.Meta.Title))
	b.WriteString("\n")

	if d.Meta.PublishedAt != "" {
		fmt.Fprintf(&b, "**Published Date:** %s\n", d.Meta.PublishedAt)
	}

	for _, name := range append(append([]string{}, sectionOrder...), d.extras...) {
		content := d.Sections[name]
		if content == "" {
			continue
		}
		b.WriteString("\n## ")
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(content)
		b.WriteString("\n")
	}

	return b.String()
}

// Assemble renders a document from its parts in one call.
func Assemble(meta Meta, sections map[string]string) string {
	doc := New(meta)
	for name, content := range sections {
		doc.Set(name, content)
	}
	return doc.Render()
}

// Parse recovers a document from its rendered text. It is the inverse of
// Render for every document Render can produce, and tolerant of documents
// edited by hand: unknown headings are kept as sections under their own
// names.
func Parse(text string) *Document {
	doc := New(Meta{})

	lines := strings.Split(text, "\n")
	var current string
	var body []string

	flush := func() {
		if current != "" {
			doc.Set(current, strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "# ") && doc.Meta.Title == "" && current == "":
			doc.Meta.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		case strings.HasPrefix(line, "**Published Date:**") && current == "":
			doc.Meta.PublishedAt = strings.TrimSpace(strings.TrimPrefix(line, "**Published Date:**"))
		case strings.HasPrefix(line, "## "):
			flush()
			current = strings.TrimSpace(strings.TrimPrefix(line, "## "))
		default:
			if current != "" {
				body = append(body, line)
			}
		}
	}
	flush()

	return doc
}

// Link is one reference link with its surrounding line of context.
type Link struct {
	Label string
	URL   string
}

// RenderLinks formats reference links as the Links section body.
func RenderLinks(links []Link) string {
	if len(links) == 0 {
		return ""
	}
	var b strings.Builder
	for i, l := range links {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- [%s](%s)", l.Label, l.URL)
	}
	return b.String()
}
