package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/turnsync/internal/obslog"
	"github.com/park285/turnsync/internal/session"
	"github.com/park285/turnsync/pkg/syncdto"
)

// SessionSource loads the current session document.
type SessionSource interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

type HandlerOption func(*Handler)

// WithOriginPatterns allows cross-origin websocket handshakes from the
// given host patterns.
func WithOriginPatterns(patterns ...string) HandlerOption {
	return func(h *Handler) { h.origins = append(h.origins, patterns...) }
}

// Handler serves GET /ws?session=<id>&player=<id>. Only the two seated
// players may watch. It sends the current snapshot right away and then
// every newer one, redacted for the player.
type Handler struct {
	src          SessionSource
	rdb          *redis.Client
	origins      []string
	writeTimeout time.Duration
}

func NewHandler(src SessionSource, rdb *redis.Client, opts ...HandlerOption) *Handler {
	h := &Handler{src: src, rdb: rdb, writeTimeout: 3 * time.Second}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	viewer := r.URL.Query().Get("player")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	sess, err := h.src.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}
	if !sess.HasPlayer(viewer) {
		http.Error(w, "player is not seated in this session", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	// clients never send; CloseRead cancels ctx once they hang up
	ctx := conn.CloseRead(r.Context())

	sub := h.rdb.Subscribe(ctx, session.EventsChannel(sessionID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return
	}

	// snapshot after subscribing so no commit falls in between
	cur, err := h.src.Get(ctx, sessionID)
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "session gone")
		return
	}
	if err := h.write(ctx, conn, cur.View(viewer)); err != nil {
		return
	}
	last := cur.Revision
	obslog.L().Debug("push_subscribe", zap.String("session_id", sessionID), zap.String("player_id", viewer))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame syncdto.Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			if frame.Type == syncdto.SnapshotTypeDeleted {
				_ = h.writeFrame(ctx, conn, frame)
				conn.Close(websocket.StatusNormalClosure, "session deleted")
				return
			}
			if frame.Revision <= last {
				continue
			}
			var s session.Session
			if err := json.Unmarshal(frame.Session, &s); err != nil {
				continue
			}
			if err := h.write(ctx, conn, s.View(viewer)); err != nil {
				return
			}
			last = frame.Revision
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, s *session.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return h.writeFrame(ctx, conn, syncdto.Snapshot{
		Type:      syncdto.SnapshotTypeSession,
		SessionID: s.ID,
		Revision:  s.Revision,
		Session:   raw,
	})
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, frame syncdto.Snapshot) error {
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, frame)
}
