package session

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
    ErrNotFound      = staticErr("session not found")
    ErrLobbyNotFound = staticErr("lobby not found")
    ErrConflict      = staticErr("session changed concurrently")
)

func SessionKey(id string) string    { return "ts:session:" + strings.TrimSpace(id) }
func LobbyKey(id string) string      { return "ts:lobby:" + strings.TrimSpace(id) }
func EventsChannel(id string) string { return SessionKey(id) + ":events" }
func lobbyIndexKey() string          { return "ts:lobby:index" }
func turnDeadlinesKey() string       { return "ts:deadline:turn" }
func setupDeadlinesKey() string      { return "ts:deadline:setup" }

// Listener observes every committed session document, after the commit.
type Listener interface {
    SessionCommitted(ctx context.Context, s *Session)
}

// DeleteListener is optionally implemented by listeners that care about
// discarded sessions.
type DeleteListener interface {
    SessionDeleted(ctx context.Context, id string)
}

type ListenerFunc func(ctx context.Context, s *Session)

func (f ListenerFunc) SessionCommitted(ctx context.Context, s *Session) { f(ctx, s) }

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
    return func(s *Store) { if ttl > 0 { s.ttl = ttl } }
}

func WithClock(now func() time.Time) Option {
    return func(s *Store) { if now != nil { s.now = now } }
}

// Store keeps session and lobby documents in Redis. Every write goes
// through a WATCH/MULTI/EXEC transaction so two writers can never both
// commit against the same prior document.
type Store struct {
    rdb       *redis.Client
    ttl       time.Duration
    now       func() time.Time
    listeners []Listener
}

func NewStore(rdb *redis.Client, opts ...Option) *Store {
    s := &Store{rdb: rdb, ttl: defaultTTL, now: time.Now}
    for _, o := range opts { o(s) }
    return s
}

func (s *Store) Client() *redis.Client { return s.rdb }

// AddListener registers l. Not safe to call once the store is serving.
func (s *Store) AddListener(l Listener) {
    if l != nil { s.listeners = append(s.listeners, l) }
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
    return readSession(ctx, s.rdb, id)
}

func (s *Store) GetLobby(ctx context.Context, id string) (*Lobby, error) {
    return readLobby(ctx, s.rdb, id)
}

// ListLobbies returns every live lobby, oldest first. Index entries whose
// document expired are pruned.
func (s *Store) ListLobbies(ctx context.Context) ([]*Lobby, error) {
    ids, err := s.rdb.SMembers(ctx, lobbyIndexKey()).Result()
    if err != nil { return nil, err }
    out := make([]*Lobby, 0, len(ids))
    for _, id := range ids {
        lb, err := readLobby(ctx, s.rdb, id)
        if errors.Is(err, ErrLobbyNotFound) {
            _ = s.rdb.SRem(ctx, lobbyIndexKey(), id).Err()
            continue
        }
        if err != nil { return nil, err }
        out = append(out, lb)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
    return out, nil
}

// Commit writes next only if the stored document still carries prior's
// turn index and revision.
func (s *Store) Commit(ctx context.Context, prior, next *Session) error {
    if prior == nil || next == nil || prior.ID != next.ID { return fmt.Errorf("commit: prior and next must be the same session") }
    return s.WatchKeys(ctx, func(tx *Tx) error {
        cur, err := tx.Session(prior.ID)
        if err != nil { return err }
        if cur.TurnIndex != prior.TurnIndex || cur.Revision != prior.Revision { return ErrConflict }
        next.Revision = cur.Revision
        tx.PutSession(next)
        return nil
    }, SessionKey(prior.ID))
}

// Mutate reads the session, lets fn edit a copy and commits it against the
// read. An error from fn aborts without writing. There is no retry: a
// concurrent commit surfaces as ErrConflict.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
    prior, err := s.Get(ctx, id)
    if err != nil { return nil, err }
    next := prior.Clone()
    if err := fn(next); err != nil { return nil, err }
    if err := s.Commit(ctx, prior, next); err != nil { return nil, err }
    return next, nil
}

func (s *Store) SaveLobby(ctx context.Context, lb *Lobby) error {
    return s.WatchLobby(ctx, lb.ID, func(tx *Tx) error {
        tx.PutLobby(lb)
        return nil
    })
}

// ExpiredTurns lists playing sessions whose turn deadline is at or before
// now.
func (s *Store) ExpiredTurns(ctx context.Context, now time.Time) ([]string, error) {
    return s.expired(ctx, turnDeadlinesKey(), now)
}

// ExpiredSetups lists sessions whose setup deadline is at or before now.
func (s *Store) ExpiredSetups(ctx context.Context, now time.Time) ([]string, error) {
    return s.expired(ctx, setupDeadlinesKey(), now)
}

func (s *Store) expired(ctx context.Context, key string, now time.Time) ([]string, error) {
    return s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
        Min: "-inf",
        Max: strconv.FormatInt(now.UnixMilli(), 10),
    }).Result()
}

// WatchLobby runs fn under WATCH on the lobby document.
func (s *Store) WatchLobby(ctx context.Context, lobbyID string, fn func(tx *Tx) error) error {
    return s.WatchKeys(ctx, fn, LobbyKey(lobbyID))
}

// WatchKeys runs fn under WATCH on keys and commits whatever fn queued on
// the Tx in one MULTI/EXEC. Listeners run after a successful commit.
func (s *Store) WatchKeys(ctx context.Context, fn func(tx *Tx) error, keys ...string) error {
    var done *Tx
    err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
        tx := &Tx{ctx: ctx, rtx: rtx, now: s.now()}
        if err := fn(tx); err != nil { return err }
        if tx.empty() {
            done = tx
            return nil
        }
        if _, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            return tx.flush(ctx, pipe, s.ttl)
        }); err != nil {
            return err
        }
        done = tx
        return nil
    }, keys...)
    if errors.Is(err, redis.TxFailedErr) { return ErrConflict }
    if err != nil { return err }
    s.notify(ctx, done)
    return nil
}

func (s *Store) notify(ctx context.Context, tx *Tx) {
    if tx == nil { return }
    for _, sess := range tx.sessions {
        for _, l := range s.listeners { l.SessionCommitted(ctx, sess.Clone()) }
    }
    for _, id := range tx.deletedSessions {
        for _, l := range s.listeners {
            if dl, ok := l.(DeleteListener); ok { dl.SessionDeleted(ctx, id) }
        }
    }
}

// Tx is one optimistic transaction. Reads go through the watched
// connection; writes are queued until the transaction commits.
type Tx struct {
    ctx             context.Context
    rtx             *redis.Tx
    now             time.Time
    sessions        []*Session
    deletedSessions []string
    lobbies         []*Lobby
    deletedLobbies  []string
}

// Now is the commit timestamp shared by every write in the transaction.
func (t *Tx) Now() time.Time { return t.now }

func (t *Tx) Session(id string) (*Session, error) { return readSession(t.ctx, t.rtx, id) }

func (t *Tx) Lobby(id string) (*Lobby, error) { return readLobby(t.ctx, t.rtx, id) }

// PutSession queues sess and bumps its revision.
func (t *Tx) PutSession(sess *Session) {
    sess.Revision++
    sess.UpdatedAt = t.now
    if sess.CreatedAt.IsZero() { sess.CreatedAt = t.now }
    t.sessions = append(t.sessions, sess)
}

func (t *Tx) DeleteSession(id string) { t.deletedSessions = append(t.deletedSessions, id) }

func (t *Tx) PutLobby(lb *Lobby) {
    lb.UpdatedAt = t.now
    if lb.CreatedAt.IsZero() { lb.CreatedAt = t.now }
    t.lobbies = append(t.lobbies, lb)
}

func (t *Tx) DeleteLobby(id string) { t.deletedLobbies = append(t.deletedLobbies, id) }

func (t *Tx) empty() bool {
    return len(t.sessions) == 0 && len(t.deletedSessions) == 0 && len(t.lobbies) == 0 && len(t.deletedLobbies) == 0
}

func (t *Tx) flush(ctx context.Context, pipe redis.Pipeliner, ttl time.Duration) error {
    for _, sess := range t.sessions {
        raw, err := json.Marshal(sess)
        if err != nil { return fmt.Errorf("encode session %s: %w", sess.ID, err) }
        pipe.Set(ctx, SessionKey(sess.ID), raw, ttl)
        indexDeadline(ctx, pipe, turnDeadlinesKey(), sess.ID, sess.Status == StatusPlaying, sess.TurnDeadline)
        indexDeadline(ctx, pipe, setupDeadlinesKey(), sess.ID, sess.Status == StatusSetup, sess.SetupDeadline)
    }
    for _, id := range t.deletedSessions {
        pipe.Del(ctx, SessionKey(id))
        pipe.ZRem(ctx, turnDeadlinesKey(), id)
        pipe.ZRem(ctx, setupDeadlinesKey(), id)
    }
    for _, lb := range t.lobbies {
        raw, err := json.Marshal(lb)
        if err != nil { return fmt.Errorf("encode lobby %s: %w", lb.ID, err) }
        pipe.Set(ctx, LobbyKey(lb.ID), raw, ttl)
        pipe.SAdd(ctx, lobbyIndexKey(), lb.ID)
    }
    for _, id := range t.deletedLobbies {
        pipe.Del(ctx, LobbyKey(id))
        pipe.SRem(ctx, lobbyIndexKey(), id)
    }
    return nil
}

func indexDeadline(ctx context.Context, pipe redis.Pipeliner, key, id string, active bool, at *time.Time) {
    if active && at != nil {
        pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: id})
        return
    }
    pipe.ZRem(ctx, key, id)
}

type getter interface {
    Get(ctx context.Context, key string) *redis.StringCmd
}

func readSession(ctx context.Context, c getter, id string) (*Session, error) {
    raw, err := c.Get(ctx, SessionKey(id)).Bytes()
    if err == redis.Nil { return nil, fmt.Errorf("%w: %s", ErrNotFound, id) }
    if err != nil { return nil, err }
    var s Session
    if err := json.Unmarshal(raw, &s); err != nil { return nil, fmt.Errorf("decode session %s: %w", id, err) }
    if s.Penalties == nil { s.Penalties = map[string]int{} }
    return &s, nil
}

func readLobby(ctx context.Context, c getter, id string) (*Lobby, error) {
    raw, err := c.Get(ctx, LobbyKey(id)).Bytes()
    if err == redis.Nil { return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, id) }
    if err != nil { return nil, err }
    var lb Lobby
    if err := json.Unmarshal(raw, &lb); err != nil { return nil, fmt.Errorf("decode lobby %s: %w", id, err) }
    return &lb, nil
}
