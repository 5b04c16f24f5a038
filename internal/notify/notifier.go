// Package notify delivers check and job notifications to the user. Transports
// are pluggable; delivery is paced by a token bucket and long messages are
// chunked so no transport sees more than its maximum payload.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"jaybrain/internal/config"
	"jaybrain/internal/logging"
)

// MaxMessageLen is the default per-chunk payload cap.
const MaxMessageLen = 4096

// Notifier delivers one message. Implementations must be safe for concurrent
// use; the daemon calls them from the worker pool.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Paced wraps a transport with rate limiting and message chunking.
type Paced struct {
	transport Notifier
	limiter   *rate.Limiter
	maxLen    int
}

// NewPaced builds the standard notification pipeline from config: webhook
// transport when a URL is configured, stderr otherwise.
func NewPaced(cfg *config.Config) *Paced {
	var transport Notifier
	if cfg.Notify.WebhookURL != "" {
		transport = NewWebhook(cfg.Notify.WebhookURL, cfg.Guard.AllowHosts)
	} else {
		transport = NewStderr()
	}

	perSec := cfg.Notify.RatePerSecond
	if perSec <= 0 {
		perSec = 1
	}
	burst := cfg.Notify.Burst
	if burst <= 0 {
		burst = 3
	}
	maxLen := cfg.Notify.MaxMessageLen
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}

	return &Paced{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(perSec), burst),
		maxLen:    maxLen,
	}
}

// Notify splits the message into transport-sized chunks and delivers them in
// order, waiting on the limiter before each send.
func (p *Paced) Notify(ctx context.Context, title, message string) error {
	chunks := chunk(message, p.maxLen)
	for i, c := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		chunkTitle := title
		if len(chunks) > 1 {
			chunkTitle = fmt.Sprintf("%s (%d/%d)", title, i+1, len(chunks))
		}
		if err := p.transport.Notify(ctx, chunkTitle, c); err != nil {
			return fmt.Errorf("failed to deliver notification: %w", err)
		}
	}
	return nil
}

// chunk splits s into pieces of at most max bytes, preferring newline breaks.
func chunk(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var out []string
	for len(s) > max {
		cut := max
		if idx := lastNewline(s[:max]); idx > max/2 {
			cut = idx
		}
		out = append(out, s[:cut])
		s = s[cut:]
		if len(s) > 0 && s[0] == '\n' {
			s = s[1:]
		}
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}

// ==== TRANSPORTS ====

// Webhook POSTs {title, message} as JSON. The target URL is validated
// against the outbound guard on every send (DNS answers change).
type Webhook struct {
	URL        string
	AllowHosts []string
	Client     *http.Client
}

// NewWebhook builds a webhook transport.
func NewWebhook(url string, allowHosts []string) *Webhook {
	return &Webhook{
		URL:        url,
		AllowHosts: allowHosts,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify delivers one chunk.
func (w *Webhook) Notify(ctx context.Context, title, message string) error {
	validated, err := config.ValidateOutboundURL(ctx, w.URL, w.AllowHosts, nil)
	if err != nil {
		return fmt.Errorf("webhook URL rejected: %w", err)
	}

	body, err := json.Marshal(map[string]string{"title": title, "message": message})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, validated, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	logging.NotifyDebug("Delivered %q via webhook", title)
	return nil
}

// Stderr writes notifications to standard error. The fallback transport when
// no webhook is configured; also useful under systemd where stderr lands in
// the journal.
type Stderr struct {
	out io.Writer
}

// NewStderr builds the stderr transport.
func NewStderr() *Stderr {
	return &Stderr{out: os.Stderr}
}

// Notify writes one chunk.
func (s *Stderr) Notify(_ context.Context, title, message string) error {
	_, err := fmt.Fprintf(s.out, "[notify] %s: %s\n", title, message)
	return err
}
