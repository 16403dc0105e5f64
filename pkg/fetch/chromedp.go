package fetch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// desktopUserAgent avoids bot detection and makes pages render their full
// desktop layout.
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const defaultRenderTimeout = 60 * time.Second

// ChromeRenderer renders pages in a shared headless Chrome process. Each
// Render runs in its own isolated tab context, so concurrent renders do not
// share page state.
type ChromeRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer starts the browser allocator. Images and fonts are
// disabled to speed up loading.
func NewChromeRenderer() *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(desktopUserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-remote-fonts", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeRenderer{allocCtx: allocCtx, allocCancel: cancel}
}

// Close shuts the browser down.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

// Render navigates to the URL, scrolls to trigger lazy loading, waits for
// the instructed selector, optionally clicks, and returns the page HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string, ins Instructions) (*RenderedDocument, error) {
	timeout := ins.Timeout
	if timeout == 0 {
		timeout = defaultRenderTimeout
	}

	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	// Tie the tab's lifetime to the caller's context as well.
	go func() {
		select {
		case <-ctx.Done():
			cancelTab()
		case <-tabCtx.Done():
		}
	}()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}

	for i := 0; i < ins.ScrollSteps; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, 500)`, nil),
			chromedp.Sleep(500*time.Millisecond),
		)
	}
	if ins.ScrollSteps > 0 {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		)
	}
	if ins.Settle > 0 {
		actions = append(actions, chromedp.Sleep(ins.Settle))
	}
	if ins.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(ins.WaitSelector, chromedp.ByQuery))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	if ins.ClickSelector != "" {
		// The click target may legitimately be absent (not every episode
		// has a transcript panel), so a failed click keeps the pre-click
		// HTML instead of failing the render.
		clickCtx, cancelClick := context.WithTimeout(tabCtx, 5*time.Second)
		err := chromedp.Run(clickCtx,
			chromedp.Click(ins.ClickSelector, chromedp.ByQuery),
			chromedp.Sleep(time.Second),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		cancelClick()
		if err != nil {
			log.Printf("ChromeRenderer: click %q on %s failed: %v", ins.ClickSelector, url, err)
		}
	}

	return &RenderedDocument{URL: url, HTML: html}, nil
}
