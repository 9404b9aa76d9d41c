// Package match commits moves, resignations and timeout penalties against a
// session document. Every commit is a single compare-and-swap keyed on the
// session's turn index.
package match

import (
    "context"
    "errors"
    "fmt"
    "time"

    "go.uber.org/zap"

    "github.com/park285/turnsync/internal/obslog"
    "github.com/park285/turnsync/internal/rules"
    "github.com/park285/turnsync/internal/session"
)

var (
    ErrSessionNotFound  = errors.New("session not found")
    ErrSessionNotActive = errors.New("session is not in play")
    ErrStaleTurn        = errors.New("stale turn index")
    ErrNotYourTurn      = errors.New("not your turn")
    ErrIllegalMove      = errors.New("illegal move")
    ErrNotAPlayer       = errors.New("player is not seated in this session")

    errSkip = errors.New("nothing to do")
)

const (
    DefaultTurnBudget   = 30 * time.Second
    DefaultPenaltyLimit = 2
)

type Config struct {
    TurnBudget   time.Duration
    PenaltyLimit int
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
    return func(c *Controller) { if now != nil { c.now = now } }
}

type Controller struct {
    store *session.Store
    cfg   Config
    now   func() time.Time
}

func NewController(store *session.Store, cfg Config, opts ...Option) *Controller {
    if cfg.TurnBudget <= 0 { cfg.TurnBudget = DefaultTurnBudget }
    if cfg.PenaltyLimit <= 0 { cfg.PenaltyLimit = DefaultPenaltyLimit }
    c := &Controller{store: store, cfg: cfg, now: time.Now}
    for _, o := range opts { o(c) }
    return c
}

// SubmitMove applies mv for playerID if the session is still at
// expectedTurn and it is playerID's move. Rejections never touch the
// stored document.
func (c *Controller) SubmitMove(ctx context.Context, sessionID, playerID string, expectedTurn int, mv rules.Move) (*session.Session, error) {
    var eff rules.Effects
    next, err := c.store.Mutate(ctx, sessionID, func(s *session.Session) error {
        if s.Status != session.StatusPlaying { return ErrSessionNotActive }
        if s.TurnIndex != expectedTurn {
            return fmt.Errorf("%w: session is at %d, move was for %d", ErrStaleTurn, s.TurnIndex, expectedTurn)
        }
        if s.CurrentPlayerID != playerID { return ErrNotYourTurn }
        engine, err := rules.For(s.GameType)
        if err != nil { return err }
        doc, e, err := engine.Apply(s.State, s.Players(), playerID, mv)
        if err != nil { return fmt.Errorf("%w: %v", ErrIllegalMove, err) }
        eff = e
        s.State = doc
        s.LastMove = &e
        switch {
        case e.Finished && e.WinnerID != "":
            s.TurnIndex++
            s.Finish(e.WinnerID, session.OutcomeWin)
        case e.Finished:
            s.TurnIndex++
            s.Finish("", session.OutcomeDraw)
        default:
            s.Advance(s.Opponent(playerID), c.now().Add(c.cfg.TurnBudget))
        }
        return nil
    })
    if err != nil {
        err = c.mapErr(err)
        obslog.L().Debug("session_move_rejected",
            zap.String("session_id", sessionID),
            zap.String("player_id", playerID),
            zap.Int("expected_turn", expectedTurn),
            zap.Error(err),
        )
        return nil, err
    }
    fields := []zap.Field{
        zap.String("session_id", next.ID),
        zap.String("player_id", playerID),
        zap.Int("turn_index", next.TurnIndex),
        zap.String("notation", eff.Notation),
    }
    if eff.Combat != nil { fields = append(fields, zap.String("combat", string(eff.Combat.Result))) }
    if next.Finished() { fields = append(fields, zap.String("winner_id", next.WinnerID), zap.String("outcome", string(next.Outcome))) }
    obslog.L().Info("session_move", fields...)
    return next, nil
}

// Resign ends a running match in the opponent's favour.
func (c *Controller) Resign(ctx context.Context, sessionID, playerID string) (*session.Session, error) {
    next, err := c.store.Mutate(ctx, sessionID, func(s *session.Session) error {
        if !s.HasPlayer(playerID) { return ErrNotAPlayer }
        if s.Status != session.StatusPlaying { return ErrSessionNotActive }
        s.TurnIndex++
        s.LastMove = nil
        s.Finish(s.Opponent(playerID), session.OutcomeForfeit)
        return nil
    })
    if err != nil { return nil, c.mapErr(err) }
    obslog.L().Info("session_resign",
        zap.String("session_id", next.ID),
        zap.String("player_id", playerID),
        zap.Int("turn_index", next.TurnIndex),
        zap.String("winner_id", next.WinnerID),
    )
    return next, nil
}

// Timeout penalises the player on move if their deadline is at or before
// now. Reaching the penalty limit forfeits the match. Otherwise the turn
// passes to the opponent, and engines that track the side to move record
// the pass in the state document. It reports false
// when the deadline no longer applies, including when a concurrent commit
// won the race.
func (c *Controller) Timeout(ctx context.Context, sessionID string, now time.Time) (bool, *session.Session, error) {
    var penalised string
    next, err := c.store.Mutate(ctx, sessionID, func(s *session.Session) error {
        if s.Status != session.StatusPlaying || s.TurnDeadline == nil || s.TurnDeadline.After(now) { return errSkip }
        penalised = s.CurrentPlayerID
        if s.Penalties == nil { s.Penalties = map[string]int{} }
        s.Penalties[penalised]++
        s.LastMove = nil
        if s.Penalties[penalised] >= c.cfg.PenaltyLimit {
            s.TurnIndex++
            s.Finish(s.Opponent(penalised), session.OutcomeForfeit)
            return nil
        }
        doc, eff, err := rules.Pass(s.State, s.Players(), penalised)
        if err != nil { return fmt.Errorf("record pass: %w", err) }
        s.State = doc
        switch {
        case eff.Finished && eff.WinnerID != "":
            s.TurnIndex++
            s.Finish(eff.WinnerID, session.OutcomeForfeit)
        case eff.Finished:
            s.TurnIndex++
            s.Finish("", session.OutcomeDraw)
        default:
            s.Advance(s.Opponent(penalised), now.Add(c.cfg.TurnBudget))
        }
        return nil
    })
    switch {
    case errors.Is(err, errSkip), errors.Is(err, session.ErrConflict), errors.Is(err, session.ErrNotFound):
        return false, nil, nil
    case err != nil:
        return false, nil, err
    }
    obslog.L().Info("session_timeout",
        zap.String("session_id", next.ID),
        zap.String("player_id", penalised),
        zap.Int("turn_index", next.TurnIndex),
        zap.Int("penalties", next.Penalties[penalised]),
        zap.Bool("finished", next.Finished()),
    )
    return true, next, nil
}

func (c *Controller) mapErr(err error) error {
    switch {
    case errors.Is(err, session.ErrNotFound):
        return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
    case errors.Is(err, session.ErrConflict):
        return fmt.Errorf("%w: %v", ErrStaleTurn, err)
    }
    return err
}
