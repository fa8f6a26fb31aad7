// Package webhook delivers call-end notifications to an external HTTP
// endpoint. It subscribes to the event bus and POSTs a JSON payload
// for every ended call, so a CRM or dialer can react without polling
// the API.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/calldeck/calldeck/internal/config"
	"github.com/calldeck/calldeck/internal/events"
	"github.com/calldeck/calldeck/internal/httpkit"
)

// Notifier forwards call_ended events to a configured URL. Delivery is
// best-effort: failures are logged and the event is dropped, never
// replayed.
type Notifier struct {
	url    string
	client *http.Client
	bus    *events.Bus
	logger *slog.Logger
	done   chan struct{}
	sub    <-chan events.Event
}

// New creates a notifier from config. Returns nil when no URL is
// configured; a nil Notifier's Start and Stop are no-ops.
func New(cfg config.WebhookConfig, bus *events.Bus, logger *slog.Logger) *Notifier {
	if cfg.URL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url: cfg.URL,
		client: httpkit.NewClient(
			httpkit.WithTimeout(timeout),
			httpkit.WithRetry(cfg.RetryCount, time.Second),
			httpkit.WithLogger(logger),
		),
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start subscribes to the bus and begins delivering events in a
// background goroutine until ctx is cancelled or Stop is called.
func (n *Notifier) Start(ctx context.Context) {
	if n == nil {
		return
	}
	n.sub = n.bus.Subscribe(64)
	go n.loop(ctx)
	n.logger.Info("webhook notifier started", "url", n.url)
}

// Stop unsubscribes and waits for the delivery loop to exit.
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.bus.Unsubscribe(n.sub)
	<-n.done
}

func (n *Notifier) loop(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-n.sub:
			if !ok {
				return
			}
			if e.Kind != events.KindCallEnded {
				continue
			}
			n.deliver(ctx, e)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, e events.Event) {
	payload := map[string]any{
		"event":     e.Kind,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
		"data":      e.Data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("webhook payload marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("webhook request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("webhook delivery failed", "url", n.url, "error", err)
		return
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode >= 300 {
		n.logger.Error("webhook rejected",
			"url", n.url,
			"status", resp.StatusCode,
			"body", httpkit.ReadErrorBody(resp.Body, 512),
		)
		return
	}
	n.logger.Debug("webhook delivered",
		"url", n.url,
		"status", resp.StatusCode,
		"session_id", e.Data["session_id"],
	)
}

// String describes the notifier for startup logging.
func (n *Notifier) String() string {
	if n == nil {
		return "webhook disabled"
	}
	return fmt.Sprintf("webhook -> %s", n.url)
}
