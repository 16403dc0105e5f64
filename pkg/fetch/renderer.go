// Package fetch renders external episode pages and extracts the episode
// attributes this system cares about: description text, reference links,
// video ids, and native transcript panels.
package fetch

import (
	"context"
	"time"
)

// Instructions tell the renderer how to bring a page into an extractable
// state before handing back its HTML.
type Instructions struct {
	// WaitSelector is a CSS selector the page must show before extraction.
	WaitSelector string

	// ClickSelector, when set, is clicked after the wait (e.g. a
	// transcript panel toggle). A missing element is not an error.
	ClickSelector string

	// ScrollSteps scrolls the page down in increments to trigger lazy
	// loading.
	ScrollSteps int

	// Settle is how long to wait after scrolling for content to load.
	Settle time.Duration

	// Timeout bounds the whole render. Exceeding it fails this render
	// only, never the run.
	Timeout time.Duration
}

// RenderedDocument is the outcome of one page render.
type RenderedDocument struct {
	URL  string
	HTML string
}

// Renderer is the page automation capability: given a URL and extraction
// instructions, return the rendered document or fail.
type Renderer interface {
	Render(ctx context.Context, url string, ins Instructions) (*RenderedDocument, error)
}
