package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/turnsync/internal/rules"
	"github.com/park285/turnsync/internal/session"
	"github.com/park285/turnsync/pkg/syncdto"
)

func sampleSession() *session.Session {
	return &session.Session{
		ID:              "s1",
		LobbyID:         "l1",
		GameType:        rules.TicTacToe,
		Player1ID:       "p1",
		Player2ID:       "p2",
		TurnIndex:       3,
		CurrentPlayerID: "p1",
		Status:          session.StatusPlaying,
		Revision:        4,
	}
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var token atomic.Value
	got := make(chan syncdto.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		token.Store(r.Header.Get("X-Webhook-Token"))
		body, _ := io.ReadAll(r.Body)
		var ev syncdto.Event
		if err := json.Unmarshal(body, &ev); err == nil {
			got <- ev
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithRetry(3), WithHeader("X-Webhook-Token", "secret"))
	w.SessionCommitted(context.Background(), sampleSession())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case ev := <-got:
		require.Equal(t, syncdto.EventSessionCommitted, ev.Type)
		require.Equal(t, "s1", ev.SessionID)
		require.Equal(t, int64(4), ev.Revision)
		require.Equal(t, 3, ev.TurnIndex)
	case <-time.After(3 * time.Second):
		t.Fatalf("webhook never delivered")
	}
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, "secret", token.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithRetry(3))
	err := w.Post(context.Background(), syncdto.Event{Type: syncdto.EventSessionDeleted, SessionID: "s1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=400")
	require.Equal(t, int32(1), calls.Load())
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	w := NewWebhook("http://127.0.0.1:1", WithQueueSize(1))
	w.SessionDeleted(context.Background(), "a")
	w.SessionDeleted(context.Background(), "b")
	require.Len(t, w.queue, 1)
	ev := <-w.queue
	require.Equal(t, "a", ev.SessionID)
}

func TestComputeDeadlinePrefersEarlierContext(t *testing.T) {
	w := NewWebhook("http://x", WithTimeout(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	dl, _ := ctx.Deadline()
	require.Equal(t, dl, w.computeDeadline(ctx))
	require.True(t, w.computeDeadline(context.Background()).After(time.Now().Add(30*time.Minute)))
}
