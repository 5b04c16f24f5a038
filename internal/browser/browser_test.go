package browser

import (
	"context"
	"testing"

	"jaybrain/internal/config"
)

func TestFetchRejectsBadURLBeforeLaunch(t *testing.T) {
	m := New(config.DefaultConfig())
	t.Cleanup(m.Close)

	cases := []string{
		"",
		"not a url",
		"ftp://example.com/file",
		"http://127.0.0.1/admin",
		"http://169.254.169.254/latest/meta-data",
	}
	for _, raw := range cases {
		if _, err := m.Fetch(context.Background(), raw); err == nil {
			t.Errorf("Fetch(%q) should fail validation", raw)
		}
	}

	// Validation failures must never start a browser.
	m.mu.Lock()
	launched := m.browser != nil
	m.mu.Unlock()
	if launched {
		t.Error("browser launched for rejected URLs")
	}
}

func TestScreenshotRejectsBadURL(t *testing.T) {
	m := New(config.DefaultConfig())
	t.Cleanup(m.Close)

	if _, err := m.Screenshot(context.Background(), "http://10.0.0.1/", ""); err == nil {
		t.Error("private address should fail validation")
	}
}

func TestCloseWithoutLaunch(t *testing.T) {
	m := New(config.DefaultConfig())
	m.Close()
	m.Close()
}
