package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/webagent/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		debugLog.Warnf("Failed to initialize browser logger: %v", err)
	}
}

// launcher starts browsers. The playwright implementation is used outside tests.
type launcher interface {
	start() error
	launch(opts WindowOptions) (page, error)
	stop() error
}

// Manager manages local browser windows.
type Manager struct {
	mu          sync.RWMutex
	windows     map[string]*Window
	launcher    launcher
	maxWindows  int
	idleTimeout time.Duration
	initialized bool

	stopCleanup chan struct{}
	cleanupWG   sync.WaitGroup
}

// NewManager creates a manager backed by playwright.
func NewManager() *Manager {
	return newManager(&playwrightLauncher{})
}

func newManager(l launcher) *Manager {
	return &Manager{
		windows:     make(map[string]*Window),
		launcher:    l,
		maxWindows:  DefaultMaxWindows,
		idleTimeout: DefaultIdleTimeout,
	}
}

// Initialize installs and starts playwright. It must be called before Open.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	if err := m.launcher.start(); err != nil {
		return err
	}
	m.initialized = true
	return nil
}

// Open launches a window and loads url. An empty name gets a generated one.
func (m *Manager) Open(name, url string, opts WindowOptions) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		name = "window-" + uuid.New().String()[:8]
	}
	if _, exists := m.windows[name]; exists {
		return nil, fmt.Errorf("window %q already exists", name)
	}
	if len(m.windows) >= m.maxWindows {
		return nil, fmt.Errorf("maximum number of windows (%d) reached", m.maxWindows)
	}
	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	p, err := m.launcher.launch(opts)
	if err != nil {
		return nil, err
	}

	w := newWindow(name, opts.Headless, p)
	if url != "" {
		if err := w.Navigate(url, NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	m.windows[name] = w
	debugLog.Infof("Opened window %s at %s", name, url)
	return w, nil
}

// Close closes and removes a window.
func (m *Manager) Close(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, exists := m.windows[name]
	if !exists {
		return fmt.Errorf("window %q not found", name)
	}
	delete(m.windows, name)
	return w.page.Close()
}

// Get returns an open window by name.
func (m *Manager) Get(name string) (*Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, exists := m.windows[name]
	if !exists {
		return nil, fmt.Errorf("window %q not found", name)
	}
	return w, nil
}

// List returns information about all open windows.
func (m *Manager) List() []WindowInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]WindowInfo, 0, len(m.windows))
	for _, w := range m.windows {
		infos = append(infos, w.Info())
	}
	return infos
}

// ActiveTabURL returns the address of the most recently used window.
func (m *Manager) ActiveTabURL(ctx context.Context) (string, error) {
	m.mu.RLock()
	var latest *Window
	for _, w := range m.windows {
		if latest == nil || w.idleSince().After(latest.idleSince()) {
			latest = w
		}
	}
	m.mu.RUnlock()

	if latest == nil {
		return "", ErrNoWindow
	}
	return latest.URL(), nil
}

// CloseAll closes every window.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, w := range m.windows {
		if err := w.page.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.windows, name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing windows: %v", errs)
	}
	return nil
}

// StartCleanup closes idle windows every interval until Shutdown.
// Calling it again while the loop runs does nothing.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCleanup != nil || interval <= 0 {
		return
	}
	stop := make(chan struct{})
	m.stopCleanup = stop

	m.cleanupWG.Add(1)
	go func() {
		defer m.cleanupWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := m.CleanupIdle(); err != nil {
					debugLog.Warnf("Idle window cleanup failed: %v", err)
				}
			}
		}
	}()
}

// Shutdown stops the cleanup loop, closes every window and stops playwright.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	stop := m.stopCleanup
	m.stopCleanup = nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	m.cleanupWG.Wait()

	_ = m.CloseAll()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		if err := m.launcher.stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

// CleanupIdle closes windows unused for longer than the idle timeout.
func (m *Manager) CleanupIdle() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var errs []error
	for name, w := range m.windows {
		if now.Sub(w.idleSince()) <= m.idleTimeout {
			continue
		}
		if err := w.page.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.windows, name)
		debugLog.Infof("Closed idle window %s", name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %v", errs)
	}
	return nil
}

// SetMaxWindows sets the maximum number of concurrent windows.
func (m *Manager) SetMaxWindows(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxWindows = max
}

// SetIdleTimeout sets the idle timeout duration.
func (m *Manager) SetIdleTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleTimeout = timeout
}

type playwrightLauncher struct {
	pw *playwright.Playwright
}

func (l *playwrightLauncher) start() error {
	// Keep playwright quiet so it does not draw over the TUI.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return nil
}

func (l *playwrightLauncher) launch(opts WindowOptions) (page, error) {
	b, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	pg, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	pg.SetDefaultTimeout(opts.Timeout)

	return &playwrightPage{browser: b, context: bctx, page: pg}, nil
}

func (l *playwrightLauncher) stop() error {
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	return err
}
