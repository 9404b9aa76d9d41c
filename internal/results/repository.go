package results

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    _ "github.com/lib/pq"

    "github.com/park285/turnsync/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS match_results (
    session_id  TEXT PRIMARY KEY,
    lobby_id    TEXT NOT NULL DEFAULT '',
    game_type   TEXT NOT NULL,
    player1_id  TEXT NOT NULL,
    player2_id  TEXT NOT NULL,
    winner_id   TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    turns       INTEGER NOT NULL,
    penalties   JSONB NOT NULL DEFAULT '{}',
    moves_uci   JSONB NOT NULL DEFAULT '[]',
    moves_san   JSONB NOT NULL DEFAULT '[]',
    pgn         TEXT NOT NULL DEFAULT '',
    combats     INTEGER NOT NULL DEFAULT 0,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

type Repository struct {
    db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
    if r == nil || r.db == nil { return nil }
    _, err := r.db.ExecContext(ctx, schema)
    return err
}

// SaveResult upserts one finished match.
func (r *Repository) SaveResult(ctx context.Context, m *domain.MatchResult) error {
    if r == nil || r.db == nil || m == nil {
        return nil
    }
    penalties, _ := json.Marshal(m.Penalties)
    movesUCI, _ := json.Marshal(nonNil(m.MovesUCI))
    movesSAN, _ := json.Marshal(nonNil(m.MovesSAN))

    q := `INSERT INTO match_results (
        session_id, lobby_id, game_type, player1_id, player2_id,
        winner_id, outcome, turns, penalties, moves_uci, moves_san, pgn,
        combats, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
      ) ON CONFLICT (session_id) DO UPDATE SET
        winner_id=EXCLUDED.winner_id,
        outcome=EXCLUDED.outcome,
        turns=EXCLUDED.turns,
        penalties=EXCLUDED.penalties,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        combats=EXCLUDED.combats,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

    _, err := r.db.ExecContext(ctx, q,
        m.SessionID, m.LobbyID, m.GameType, m.Player1ID, m.Player2ID,
        m.WinnerID, m.Outcome, m.Turns, string(penalties), string(movesUCI), string(movesSAN), m.PGN,
        m.Combats, m.StartedAt, m.EndedAt, m.Duration.Milliseconds(),
    )
    return err
}

func nonNil(s []string) []string {
    if s == nil { return []string{} }
    return s
}
