// Package notify posts session changes to an external webhook. Delivery is
// best effort: the commit path only enqueues, and a full queue drops events.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/turnsync/internal/obslog"
	"github.com/park285/turnsync/internal/session"
	"github.com/park285/turnsync/pkg/syncdto"
)

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(w *Webhook) { w.retryMax = max }
}

func WithQueueSize(n int) Option {
	return func(w *Webhook) {
		if n > 0 {
			w.queue = make(chan syncdto.Event, n)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Webhook) {
		if now != nil {
			w.now = now
		}
	}
}

func WithHeader(k, v string) Option {
	return func(w *Webhook) {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			w.headers[k] = v
		}
	}
}

type Webhook struct {
	url      string
	http     *fasthttp.Client
	headers  map[string]string
	queue    chan syncdto.Event
	timeout  time.Duration
	retryMax int
	now      func() time.Time
}

func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:      strings.TrimSpace(url),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		headers:  map[string]string{},
		queue:    make(chan syncdto.Event, 256),
		timeout:  5 * time.Second,
		retryMax: 3,
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) SessionCommitted(_ context.Context, s *session.Session) {
	w.enqueue(syncdto.Event{
		Type:       syncdto.EventSessionCommitted,
		SessionID:  s.ID,
		LobbyID:    s.LobbyID,
		GameType:   string(s.GameType),
		Revision:   s.Revision,
		Status:     string(s.Status),
		TurnIndex:  s.TurnIndex,
		CurrentID:  s.CurrentPlayerID,
		WinnerID:   s.WinnerID,
		Outcome:    string(s.Outcome),
		OccurredAt: w.now().UTC(),
	})
}

func (w *Webhook) SessionDeleted(_ context.Context, id string) {
	w.enqueue(syncdto.Event{Type: syncdto.EventSessionDeleted, SessionID: id, OccurredAt: w.now().UTC()})
}

func (w *Webhook) enqueue(ev syncdto.Event) {
	select {
	case w.queue <- ev:
	default:
		obslog.L().Warn("webhook_queue_full", zap.String("session_id", ev.SessionID), zap.String("type", ev.Type))
	}
}

// Run delivers queued events until ctx is done.
func (w *Webhook) Run(ctx context.Context) error {
	obslog.L().Info("webhook_start", zap.String("url", w.url))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.queue:
			if err := w.Post(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
				obslog.L().Warn("webhook_post_error",
					zap.String("session_id", ev.SessionID),
					zap.String("type", ev.Type),
					zap.Error(err))
			}
		}
	}
}

// Post sends one event, retrying transport errors and 5xx replies.
func (w *Webhook) Post(ctx context.Context, ev syncdto.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("webhook status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return sleepErr
		}
		resp.Reset()
	}
	return lastErr
}

func (w *Webhook) computeDeadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
