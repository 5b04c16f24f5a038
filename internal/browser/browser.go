// Package browser wraps a shared headless browser for page fetch and
// screenshot tools. The browser launches lazily on first use and is closed
// on server shutdown.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"jaybrain/internal/config"
	"jaybrain/internal/logging"
)

// maxPageText caps extracted page text.
const maxPageText = 20000

// Manager owns the shared browser instance.
type Manager struct {
	cfg *config.Config

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// New builds a manager. Nothing launches until the first fetch.
func New(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// PageResult is the browser_fetch payload.
type PageResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetch loads a page and extracts its title and visible text.
func (m *Manager) Fetch(ctx context.Context, rawURL string) (*PageResult, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "Fetch")
	defer timer.Stop()

	page, finalURL, err := m.openPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	title := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
	}

	text, err := pageText(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page text: %w", err)
	}

	return &PageResult{URL: finalURL, Title: title, Text: text}, nil
}

// Screenshot loads a page and writes a full-page PNG. An empty path puts the
// file under <data-dir>/screenshots.
func (m *Manager) Screenshot(ctx context.Context, rawURL, path string) (string, error) {
	timer := logging.StartTimer(logging.CategoryBrowser, "Screenshot")
	defer timer.Stop()

	page, _, err := m.openPage(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer page.Close()

	data, err := page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if path == "" {
		dir := filepath.Join(m.cfg.DataDir, "screenshots")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		path = filepath.Join(dir, time.Now().Format("20060102-150405")+"-"+uuid.NewString()[:8]+".png")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// openPage validates the URL, ensures the browser is up, and navigates a
// fresh page. Callers own the returned page.
func (m *Manager) openPage(ctx context.Context, rawURL string) (*rod.Page, string, error) {
	validated, err := config.ValidateOutboundURL(ctx, rawURL, m.cfg.Guard.AllowHosts, nil)
	if err != nil {
		return nil, "", err
	}

	browser, err := m.ensureStarted(ctx)
	if err != nil {
		return nil, "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create page: %w", err)
	}

	timeout := m.cfg.GetBrowserTimeout()
	if err := page.Context(ctx).Timeout(timeout).Navigate(validated); err != nil {
		page.Close()
		return nil, "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		page.Close()
		return nil, "", fmt.Errorf("failed to load page: %w", err)
	}

	finalURL := validated
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return page, finalURL, nil
}

func (m *Manager) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return m.browser, nil
	}

	l := launcher.New().Headless(m.cfg.Browser.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logging.Browser("Browser launched (headless=%v)", m.cfg.Browser.Headless)
	m.launcher = l
	m.browser = browser
	return browser, nil
}

// Close shuts the shared browser down. Safe to call without a launch.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			logging.BrowserDebug("Browser close: %v", err)
		}
		m.browser = nil
	}
	if m.launcher != nil {
		m.launcher.Cleanup()
		m.launcher = nil
	}
}

// pageText pulls document.body.innerText, collapses whitespace runs, and
// truncates.
func pageText(ctx context.Context, page *rod.Page) (string, error) {
	obj, err := page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	text := obj.Value.Str()

	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	text = strings.TrimSpace(strings.Join(out, "\n"))

	if len(text) > maxPageText {
		text = text[:maxPageText]
	}
	return text, nil
}
