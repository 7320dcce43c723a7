package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// page is the part of a launched browser a Window drives.
type page interface {
	Goto(url string, opts NavigateOptions) error
	URL() string
	Close() error
}

// Window is one local browser window.
type Window struct {
	Name     string
	Headless bool

	page page

	mu         sync.Mutex
	createdAt  time.Time
	lastUsedAt time.Time
	currentURL string
}

func newWindow(name string, headless bool, p page) *Window {
	now := time.Now()
	return &Window{
		Name:       name,
		Headless:   headless,
		page:       p,
		createdAt:  now,
		lastUsedAt: now,
		currentURL: "about:blank",
	}
}

// Touch marks the window as used.
func (w *Window) Touch() {
	w.mu.Lock()
	w.lastUsedAt = time.Now()
	w.mu.Unlock()
}

// Navigate loads url in the window.
func (w *Window) Navigate(url string, opts NavigateOptions) error {
	w.Touch()
	if err := w.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	w.mu.Lock()
	w.currentURL = w.page.URL()
	w.mu.Unlock()
	return nil
}

// URL returns the address currently shown, which may differ from the last
// navigation when the user clicked around.
func (w *Window) URL() string {
	if u := w.page.URL(); u != "" {
		w.mu.Lock()
		w.currentURL = u
		w.mu.Unlock()
		return u
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentURL
}

// Info returns a snapshot of the window metadata.
func (w *Window) Info() WindowInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowInfo{
		Name:       w.Name,
		CurrentURL: w.currentURL,
		Headless:   w.Headless,
		CreatedAt:  w.createdAt,
		LastUsedAt: w.lastUsedAt,
	}
}

func (w *Window) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsedAt
}

// playwrightPage holds the resources behind one window.
type playwrightPage struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (p *playwrightPage) Goto(url string, opts NavigateOptions) error {
	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = &opts.Timeout
	}
	_, err := p.page.Goto(url, gotoOpts)
	return err
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Close() error {
	var errs []error
	if err := p.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing window: %v", errs)
	}
	return nil
}
