package browser

import (
	"sync"
)

// LiveWindowName is the window that mirrors the backend's live browser view.
const LiveWindowName = "live-view"

// LiveView keeps one local window showing the remote session's live URL.
type LiveView struct {
	manager  *Manager
	headless bool

	mu      sync.Mutex
	current string
}

// NewLiveView creates a view that opens windows through manager.
func NewLiveView(manager *Manager, headless bool) *LiveView {
	return &LiveView{manager: manager, headless: headless}
}

// Show points the live window at url, opening it if needed. An empty url closes the window.
func (v *LiveView) Show(url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if url == v.current {
		return nil
	}
	if url == "" {
		v.current = ""
		if _, err := v.manager.Get(LiveWindowName); err != nil {
			return nil
		}
		return v.manager.Close(LiveWindowName)
	}

	if w, err := v.manager.Get(LiveWindowName); err == nil {
		if err := w.Navigate(url, NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
			return err
		}
	} else {
		if err := v.manager.Initialize(); err != nil {
			return err
		}
		if _, err := v.manager.Open(LiveWindowName, url, WindowOptions{Headless: v.headless}); err != nil {
			return err
		}
	}
	v.current = url
	return nil
}

// Current returns the URL being shown.
func (v *LiveView) Current() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}
