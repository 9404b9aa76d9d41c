// Package sweep drives deadline enforcement: expired turns are penalised
// and expired setups are completed. Every step re-checks its deadline inside
// the session's compare-and-swap, so any number of sweepers may run.
package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/turnsync/internal/obslog"
	"github.com/park285/turnsync/internal/session"
)

// TurnIndex lists sessions whose turn deadline has passed.
type TurnIndex interface {
	ExpiredTurns(ctx context.Context, now time.Time) ([]string, error)
}

// TurnResolver commits a synthetic timeout for one session.
type TurnResolver interface {
	Timeout(ctx context.Context, sessionID string, now time.Time) (bool, *session.Session, error)
}

// SetupExpirer completes overdue setup phases.
type SetupExpirer interface {
	ExpireSetups(ctx context.Context, now time.Time) ([]string, error)
}

type Report struct {
	Turns  []string `json:"turns"`
	Setups []string `json:"setups"`
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

type Sweeper struct {
	index    TurnIndex
	turns    TurnResolver
	setups   SetupExpirer
	interval time.Duration
	now      func() time.Time
}

func New(index TurnIndex, turns TurnResolver, setups SetupExpirer, interval time.Duration, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s := &Sweeper{index: index, turns: turns, setups: setups, interval: interval, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SweepExpiredTurns applies one timeout to every session whose deadline
// has elapsed and returns the ids that were actually changed.
func (s *Sweeper) SweepExpiredTurns(ctx context.Context) ([]string, error) {
	now := s.now()
	ids, err := s.index.ExpiredTurns(ctx, now)
	if err != nil {
		return nil, err
	}
	var processed []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ok, _, err := s.turns.Timeout(ctx, id, now)
		if err != nil {
			obslog.L().Error("sweep_timeout_error", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if ok {
			processed = append(processed, id)
		}
	}
	return processed, nil
}

// RunOnce sweeps turns then setups.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	turns, err := s.SweepExpiredTurns(ctx)
	rep.Turns = turns
	if err != nil {
		return rep, err
	}
	if s.setups != nil {
		setups, err := s.setups.ExpireSetups(ctx, s.now())
		rep.Setups = setups
		if err != nil {
			return rep, err
		}
	}
	if len(rep.Turns) > 0 || len(rep.Setups) > 0 {
		obslog.L().Info("sweep_run", zap.Int("turns", len(rep.Turns)), zap.Int("setups", len(rep.Setups)))
	}
	return rep, nil
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	obslog.L().Info("sweep_start", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			obslog.L().Info("sweep_stop")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				obslog.L().Warn("sweep_run_error", zap.Error(err))
			}
		}
	}
}
