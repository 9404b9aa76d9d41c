// Package results archives finished matches to Postgres.
package results

import (
    "context"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/park285/turnsync/internal/domain"
    "github.com/park285/turnsync/internal/obslog"
    "github.com/park285/turnsync/internal/rules"
    "github.com/park285/turnsync/internal/session"
)

// Saver stores one result.
type Saver interface {
    SaveResult(ctx context.Context, m *domain.MatchResult) error
}

// Recorder is a session.Listener that archives sessions once they finish.
// Sessions that never left setup are not archived.
type Recorder struct {
    saver   Saver
    timeout time.Duration
}

func NewRecorder(s Saver) *Recorder { return &Recorder{saver: s, timeout: 5 * time.Second} }

func (r *Recorder) SessionCommitted(ctx context.Context, s *session.Session) {
    if r == nil || r.saver == nil || !s.Finished() || s.TurnIndex == 0 { return }
    m := FromSession(s)
    sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
    defer cancel()
    if err := r.saver.SaveResult(sctx, m); err != nil {
        obslog.L().Error("result_save_error", zap.String("session_id", s.ID), zap.Error(err))
        return
    }
    obslog.L().Info("result_saved",
        zap.String("session_id", s.ID),
        zap.String("game_type", m.GameType),
        zap.String("outcome", m.Outcome),
        zap.String("winner_id", m.WinnerID))
}

// FromSession flattens a finished session into its archive row.
func FromSession(s *session.Session) *domain.MatchResult {
    m := &domain.MatchResult{
        SessionID: s.ID,
        LobbyID:   s.LobbyID,
        GameType:  string(s.GameType),
        Player1ID: s.Player1ID,
        Player2ID: s.Player2ID,
        WinnerID:  s.WinnerID,
        Outcome:   string(s.Outcome),
        Turns:     s.TurnIndex,
        Penalties: s.Penalties,
        StartedAt: s.CreatedAt,
        EndedAt:   s.UpdatedAt,
    }
    if d := m.EndedAt.Sub(m.StartedAt); d > 0 { m.Duration = d }
    switch {
    case s.State.Chess != nil:
        m.MovesUCI = s.State.Chess.MovesUCI
        m.MovesSAN = s.State.Chess.MovesSAN
        m.PGN = buildPGN(s, mapResultToPGN(s), s.State.Chess.Method)
    case s.State.Freestyle != nil:
        m.Combats = len(s.State.Freestyle.Log)
    }
    return m
}

func mapResultToPGN(s *session.Session) string {
    switch {
    case s.WinnerID != "" && s.WinnerID == s.Player1ID:
        return "1-0"
    case s.WinnerID != "" && s.WinnerID == s.Player2ID:
        return "0-1"
    case s.Outcome == session.OutcomeDraw:
        return "1/2-1/2"
    default:
        return "*"
    }
}

func buildPGN(s *session.Session, pgnResult, method string) string {
    if s == nil || s.GameType != rules.Chess { return "" }
    var b strings.Builder
    date := s.UpdatedAt
    if date.IsZero() { date = time.Now() }
    b.WriteString("[Event \"turnsync\"]\n")
    b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(s.LobbyID)))
    b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
    b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(s.Player1ID)))
    b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(s.Player2ID)))
    termination := strings.TrimSpace(method)
    if s.Outcome == session.OutcomeForfeit || s.Outcome == session.OutcomeAbandoned {
        termination = string(s.Outcome)
    }
    if termination != "" {
        b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(termination))))
    }
    b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

    san := s.State.Chess.MovesSAN
    for i := 0; i < len(san); i += 2 {
        b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(san[i])))
        if i+1 < len(san) {
            b.WriteString(" ")
            b.WriteString(strings.TrimSpace(san[i+1]))
        }
        b.WriteString(" ")
    }
    b.WriteString(pgnResult)
    return b.String()
}

func sanitizePGN(s string) string {
    s = strings.ReplaceAll(s, "\\", " ")
    s = strings.ReplaceAll(s, "\"", "'")
    return strings.TrimSpace(s)
}
