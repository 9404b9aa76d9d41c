// Package lobby runs the pre-game phase: two players meet in a lobby, each
// submits a private setup, and the match starts once both are ready or the
// setup deadline passes.
package lobby

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/park285/turnsync/internal/freestyle"
    "github.com/park285/turnsync/internal/obslog"
    "github.com/park285/turnsync/internal/rules"
    "github.com/park285/turnsync/internal/session"
)

var (
    ErrInvalidArgs     = errors.New("invalid arguments")
    ErrLobbyNotFound   = errors.New("lobby not found")
    ErrLobbyFull       = errors.New("lobby already has two players")
    ErrNotInLobby      = errors.New("player is not in this lobby")
    ErrSessionNotFound = errors.New("session not found")
    ErrWrongPhase      = errors.New("session is not in setup")
    ErrBusy            = errors.New("lobby changed concurrently, retry")

    ErrInvalidPayload  = freestyle.ErrInvalidPayload
    ErrFlagInvalid     = freestyle.ErrFlagInvalid
    ErrWrongRoleCounts = freestyle.ErrWrongRoleCounts

    errSkip = errors.New("nothing to do")
)

const syncAttempts = 3

const (
    DefaultSetupBudget = 120 * time.Second
    DefaultTurnBudget  = 30 * time.Second
)

type Config struct {
    SetupBudget time.Duration
    TurnBudget  time.Duration
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
    return func(c *Coordinator) { if now != nil { c.now = now } }
}

// WithRand seeds setup synthesis and command role draws.
func WithRand(r *rand.Rand) Option {
    return func(c *Coordinator) { if r != nil { c.rng = r } }
}

type Coordinator struct {
    store *session.Store
    cfg   Config
    now   func() time.Time

    rngMu sync.Mutex
    rng   *rand.Rand

    beforeSync func(attempt int) // test seam, runs inside the lobby sync transaction
}

func New(store *session.Store, cfg Config, opts ...Option) *Coordinator {
    if cfg.SetupBudget <= 0 { cfg.SetupBudget = DefaultSetupBudget }
    if cfg.TurnBudget <= 0 { cfg.TurnBudget = DefaultTurnBudget }
    c := &Coordinator{
        store: store,
        cfg:   cfg,
        now:   time.Now,
        rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
    }
    for _, o := range opts { o(c) }
    return c
}

func (c *Coordinator) CreateLobby(ctx context.Context, name string, gameType rules.GameType) (*session.Lobby, error) {
    name = strings.TrimSpace(name)
    if name == "" { return nil, ErrInvalidArgs }
    if _, err := rules.For(gameType); err != nil { return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err) }
    lb := &session.Lobby{
        ID:        uuid.NewString(),
        Name:      name,
        GameType:  gameType,
        Status:    session.LobbyWaiting,
        Members:   []session.Member{},
        CreatedAt: c.now(),
    }
    if err := c.store.SaveLobby(ctx, lb); err != nil { return nil, err }
    obslog.L().Info("lobby_create", zap.String("lobby_id", lb.ID), zap.String("game_type", string(gameType)))
    return lb, nil
}

func (c *Coordinator) ListLobbies(ctx context.Context) ([]*session.Lobby, error) {
    return c.store.ListLobbies(ctx)
}

func (c *Coordinator) GetLobby(ctx context.Context, lobbyID string) (*session.Lobby, error) {
    lb, err := c.store.GetLobby(ctx, lobbyID)
    if errors.Is(err, session.ErrLobbyNotFound) { return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, lobbyID) }
    return lb, err
}

// JoinLobby seats playerID. Rejoining returns the existing team. The second
// join binds a session: games with a setup phase enter setup with a
// deadline, the rest start immediately with player one on move.
func (c *Coordinator) JoinLobby(ctx context.Context, lobbyID, playerID string) (int, *session.Lobby, error) {
    playerID = strings.TrimSpace(playerID)
    if lobbyID == "" || playerID == "" { return 0, nil, ErrInvalidArgs }
    var (
        team    int
        out     *session.Lobby
        started *session.Session
    )
    err := c.store.WatchLobby(ctx, lobbyID, func(tx *session.Tx) error {
        lb, err := tx.Lobby(lobbyID)
        if err != nil { return err }
        if m, ok := lb.Member(playerID); ok {
            team, out = m.Team, lb
            return nil
        }
        if len(lb.Members) >= 2 { return ErrLobbyFull }
        now := tx.Now()
        team = resolveTeam(lb.Members)
        lb.Members = append(lb.Members, session.Member{PlayerID: playerID, Team: team, JoinedAt: now})
        if len(lb.Members) == 2 && lb.SessionID == "" {
            started = c.newSession(lb, now)
            tx.PutSession(started)
            lb.SessionID = started.ID
            lb.Status = session.StatusFor(started.Status)
            lb.SetupDeadline = started.SetupDeadline
        }
        tx.PutLobby(lb)
        out = lb
        return nil
    })
    if err != nil {
        err = c.mapErr(err)
        obslog.L().Warn("lobby_join_error", zap.String("lobby_id", lobbyID), zap.String("player_id", playerID), zap.Error(err))
        return 0, nil, err
    }
    fields := []zap.Field{zap.String("lobby_id", lobbyID), zap.String("player_id", playerID), zap.Int("team", team)}
    if started != nil { fields = append(fields, zap.String("session_id", started.ID), zap.String("status", string(started.Status))) }
    obslog.L().Info("lobby_join", fields...)
    return team, out, nil
}

func (c *Coordinator) newSession(lb *session.Lobby, now time.Time) *session.Session {
    p1, p2 := lb.Members[0].PlayerID, lb.Members[1].PlayerID
    if lb.Members[0].Team == 2 { p1, p2 = p2, p1 }
    engine, _ := rules.For(lb.GameType)
    s := &session.Session{
        ID:        uuid.NewString(),
        LobbyID:   lb.ID,
        GameType:  lb.GameType,
        Player1ID: p1,
        Player2ID: p2,
        Penalties: map[string]int{p1: 0, p2: 0},
        CreatedAt: now,
    }
    s.State = engine.NewState(s.Players())
    if lb.GameType.NeedsSetup() {
        deadline := now.Add(c.cfg.SetupBudget)
        s.Status = session.StatusSetup
        s.SetupDeadline = &deadline
        return s
    }
    s.Start(p1, now.Add(c.cfg.TurnBudget))
    return s
}

func resolveTeam(members []session.Member) int {
    used := map[int]bool{}
    for _, m := range members { used[m.Team] = true }
    if !used[1] { return 1 }
    return 2
}

// ConfirmSetup records playerID's private setup. When it completes the pair
// the board is deployed and play starts in the same commit.
func (c *Coordinator) ConfirmSetup(ctx context.Context, sessionID, playerID string, payload freestyle.Setup) (bool, *session.Session, error) {
    var allReady bool
    next, err := c.store.Mutate(ctx, sessionID, func(s *session.Session) error {
        if !s.HasPlayer(playerID) { return ErrNotInLobby }
        if s.Status != session.StatusSetup || s.State.Freestyle == nil { return ErrWrongPhase }
        if err := s.State.Freestyle.Submit(playerID, s.Seat(playerID), payload, false); err != nil { return err }
        allReady = s.State.Freestyle.AllReady()
        if allReady { return c.start(s) }
        return nil
    })
    if err != nil {
        err = c.mapErr(err)
        obslog.L().Debug("session_setup_rejected", zap.String("session_id", sessionID), zap.String("player_id", playerID), zap.Error(err))
        return false, nil, err
    }
    obslog.L().Info("session_setup_ready",
        zap.String("session_id", sessionID),
        zap.String("player_id", playerID),
        zap.Bool("all_ready", allReady),
        zap.Int("turn_index", next.TurnIndex),
    )
    return allReady, next, nil
}

// start deploys both setups and hands the first turn to player one.
func (c *Coordinator) start(s *session.Session) error {
    c.rngMu.Lock()
    err := s.State.Freestyle.Deploy(s.Player1ID, s.Player2ID, c.rng)
    c.rngMu.Unlock()
    if err != nil { return err }
    s.Start(s.Player1ID, c.now().Add(c.cfg.TurnBudget))
    return nil
}

// ExpireSetups completes every setup phase whose deadline has passed by
// synthesising random setups for players that never confirmed.
func (c *Coordinator) ExpireSetups(ctx context.Context, now time.Time) ([]string, error) {
    ids, err := c.store.ExpiredSetups(ctx, now)
    if err != nil { return nil, err }
    var done []string
    for _, id := range ids {
        var synthesized []string
        _, err := c.store.Mutate(ctx, id, func(s *session.Session) error {
            if s.Status != session.StatusSetup || s.SetupDeadline == nil || s.SetupDeadline.After(now) || s.State.Freestyle == nil {
                return errSkip
            }
            st := s.State.Freestyle
            for _, pid := range []string{s.Player1ID, s.Player2ID} {
                if st.Ready[pid].Ready { continue }
                c.rngMu.Lock()
                setup := freestyle.RandomSetup(c.rng, s.Seat(pid))
                c.rngMu.Unlock()
                if err := st.Submit(pid, s.Seat(pid), setup, true); err != nil { return err }
                synthesized = append(synthesized, pid)
            }
            return c.start(s)
        })
        switch {
        case errors.Is(err, errSkip), errors.Is(err, session.ErrConflict), errors.Is(err, session.ErrNotFound):
            continue
        case err != nil:
            obslog.L().Error("setup_expire_error", zap.String("session_id", id), zap.Error(err))
            continue
        }
        obslog.L().Info("session_setup_expired", zap.String("session_id", id), zap.Strings("synthesized", synthesized))
        done = append(done, id)
    }
    return done, nil
}

// LeaveLobby removes playerID. The last member out deletes the lobby. If a
// member remains the lobby goes back to waiting: a setup-phase session is
// discarded and a running match is ended as abandoned in the remaining
// player's favour.
func (c *Coordinator) LeaveLobby(ctx context.Context, lobbyID, playerID string) (*session.Lobby, error) {
    lb, err := c.GetLobby(ctx, lobbyID)
    if err != nil { return nil, err }
    keys := []string{session.LobbyKey(lobbyID)}
    if lb.SessionID != "" { keys = append(keys, session.SessionKey(lb.SessionID)) }

    var out *session.Lobby
    err = c.store.WatchKeys(ctx, func(tx *session.Tx) error {
        cur, err := tx.Lobby(lobbyID)
        if err != nil { return err }
        if cur.SessionID != lb.SessionID { return session.ErrConflict }
        if _, ok := cur.Member(playerID); !ok { return ErrNotInLobby }
        remaining := make([]session.Member, 0, 1)
        for _, m := range cur.Members {
            if m.PlayerID != playerID { remaining = append(remaining, m) }
        }
        winner := ""
        if len(remaining) > 0 { winner = remaining[0].PlayerID }
        if cur.SessionID != "" {
            if err := discard(tx, cur.SessionID, winner); err != nil { return err }
        }
        if len(remaining) == 0 {
            tx.DeleteLobby(cur.ID)
            return nil
        }
        cur.Members = remaining
        cur.Status = session.LobbyWaiting
        cur.SessionID = ""
        cur.SetupDeadline = nil
        tx.PutLobby(cur)
        out = cur
        return nil
    }, keys...)
    if err != nil { return nil, c.mapErr(err) }
    obslog.L().Info("lobby_leave", zap.String("lobby_id", lobbyID), zap.String("player_id", playerID), zap.Bool("deleted", out == nil))
    return out, nil
}

func discard(tx *session.Tx, sessionID, winner string) error {
    s, err := tx.Session(sessionID)
    if errors.Is(err, session.ErrNotFound) { return nil }
    if err != nil { return err }
    switch s.Status {
    case session.StatusSetup:
        tx.DeleteSession(s.ID)
    case session.StatusPlaying:
        s.TurnIndex++
        s.LastMove = nil
        s.Finish(winner, session.OutcomeAbandoned)
        tx.PutSession(s)
    }
    return nil
}

// SessionCommitted keeps the lobby status in step with its session. A lost
// race is retried; the status comes from the stored session, never from s,
// so a retry cannot write an outdated status over a newer one.
func (c *Coordinator) SessionCommitted(ctx context.Context, s *session.Session) {
    if s.LobbyID == "" { return }
    var err error
    for attempt := 0; attempt < syncAttempts; attempt++ {
        if err = c.syncLobby(ctx, s.LobbyID, s.ID, attempt); !errors.Is(err, session.ErrConflict) { break }
    }
    if err != nil && !errors.Is(err, session.ErrLobbyNotFound) {
        obslog.L().Warn("lobby_sync_error", zap.String("lobby_id", s.LobbyID), zap.String("session_id", s.ID), zap.Error(err))
    }
}

func (c *Coordinator) syncLobby(ctx context.Context, lobbyID, sessionID string, attempt int) error {
    return c.store.WatchKeys(ctx, func(tx *session.Tx) error {
        lb, err := tx.Lobby(lobbyID)
        if err != nil { return err }
        if lb.SessionID != sessionID { return nil }
        cur, err := tx.Session(sessionID)
        if errors.Is(err, session.ErrNotFound) { return nil }
        if err != nil { return err }
        if c.beforeSync != nil { c.beforeSync(attempt) }
        want := session.StatusFor(cur.Status)
        if lb.Status == want { return nil }
        lb.Status = want
        if want != session.LobbySetup { lb.SetupDeadline = nil }
        tx.PutLobby(lb)
        return nil
    }, session.LobbyKey(lobbyID), session.SessionKey(sessionID))
}

func (c *Coordinator) mapErr(err error) error {
    switch {
    case errors.Is(err, session.ErrLobbyNotFound):
        return fmt.Errorf("%w: %v", ErrLobbyNotFound, err)
    case errors.Is(err, session.ErrNotFound):
        return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
    case errors.Is(err, session.ErrConflict):
        return ErrBusy
    }
    return err
}
