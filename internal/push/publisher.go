// Package push fans committed session snapshots out to live clients over
// Redis pub/sub and websockets. Frames are whole snapshots; a client that
// misses one simply applies the next.
package push

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/turnsync/internal/obslog"
	"github.com/park285/turnsync/internal/session"
	"github.com/park285/turnsync/pkg/syncdto"
)

// Publisher is a session.Listener that publishes every committed document
// on the session's events channel.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher { return &Publisher{rdb: rdb} }

func (p *Publisher) SessionCommitted(ctx context.Context, s *session.Session) {
	raw, err := json.Marshal(s)
	if err != nil {
		obslog.L().Error("push_encode_error", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	p.publish(ctx, s.ID, syncdto.Snapshot{
		Type:      syncdto.SnapshotTypeSession,
		SessionID: s.ID,
		Revision:  s.Revision,
		Session:   raw,
	})
}

func (p *Publisher) SessionDeleted(ctx context.Context, id string) {
	p.publish(ctx, id, syncdto.Snapshot{Type: syncdto.SnapshotTypeDeleted, SessionID: id})
}

func (p *Publisher) publish(ctx context.Context, id string, frame syncdto.Snapshot) {
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, session.EventsChannel(id), b).Err(); err != nil {
		obslog.L().Warn("push_publish_error", zap.String("session_id", id), zap.Error(err))
	}
}
