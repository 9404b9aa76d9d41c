package session

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/require"

    "github.com/park285/turnsync/internal/rules"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(mr.Close)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    opts = append([]Option{WithClock(func() time.Time { return t0 })}, opts...)
    return NewStore(rdb, opts...), mr
}

func playingSession(id string) *Session {
    e, _ := rules.For(rules.TicTacToe)
    s := &Session{ID: id, LobbyID: "l1", GameType: rules.TicTacToe, Player1ID: "p1", Player2ID: "p2"}
    s.State = e.NewState(s.Players())
    s.Start("p1", t0.Add(30*time.Second))
    return s
}

func put(t *testing.T, st *Store, s *Session) {
    t.Helper()
    err := st.WatchKeys(context.Background(), func(tx *Tx) error {
        tx.PutSession(s)
        return nil
    }, SessionKey(s.ID))
    if err != nil { t.Fatalf("put %s: %v", s.ID, err) }
}

type recorder struct {
    mu      sync.Mutex
    seen    []*Session
    deleted []string
}

func (r *recorder) SessionCommitted(_ context.Context, s *Session) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.seen = append(r.seen, s)
}

func (r *recorder) SessionDeleted(_ context.Context, id string) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.deleted = append(r.deleted, id)
}

func TestPutAndGet(t *testing.T) {
    st, _ := newTestStore(t)
    ctx := context.Background()
    rec := &recorder{}
    st.AddListener(rec)

    put(t, st, playingSession("s1"))
    got, err := st.Get(ctx, "s1")
    if err != nil { t.Fatalf("Get: %v", err) }
    if got.Revision != 1 || got.TurnIndex != 1 || got.CurrentPlayerID != "p1" {
        t.Fatalf("unexpected stored doc: rev=%d turn=%d cur=%q", got.Revision, got.TurnIndex, got.CurrentPlayerID)
    }
    if !got.UpdatedAt.Equal(t0) { t.Fatalf("updatedAt not stamped: %v", got.UpdatedAt) }
    if got.State.TicTacToe == nil { t.Fatalf("state document lost its variant") }

    if _, err := st.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
        t.Fatalf("expected ErrNotFound, got %v", err)
    }
    require.Len(t, rec.seen, 1)
}

func TestCommitRequiresPriorVersion(t *testing.T) {
    st, _ := newTestStore(t)
    ctx := context.Background()
    put(t, st, playingSession("s1"))

    prior, err := st.Get(ctx, "s1")
    require.NoError(t, err)

    first := prior.Clone()
    first.Advance("p2", t0.Add(time.Minute))
    require.NoError(t, st.Commit(ctx, prior, first))

    second := prior.Clone()
    second.Advance("p2", t0.Add(time.Minute))
    require.ErrorIs(t, st.Commit(ctx, prior, second), ErrConflict)
    require.Error(t, st.Commit(ctx, prior, playingSession("other")))

    got, err := st.Get(ctx, "s1")
    require.NoError(t, err)
    require.Equal(t, 2, got.TurnIndex)
    require.EqualValues(t, 2, got.Revision)
}

func TestMutateDetectsConcurrentWrite(t *testing.T) {
    st, _ := newTestStore(t)
    ctx := context.Background()
    put(t, st, playingSession("s1"))

    _, err := st.Mutate(ctx, "s1", func(s *Session) error {
        // another writer lands between our read and our EXEC
        _, ierr := st.Mutate(ctx, "s1", func(inner *Session) error {
            inner.Advance("p2", t0.Add(time.Minute))
            return nil
        })
        require.NoError(t, ierr)
        s.Advance("p2", t0.Add(time.Minute))
        return nil
    })
    require.ErrorIs(t, err, ErrConflict)

    got, err := st.Get(ctx, "s1")
    require.NoError(t, err)
    require.Equal(t, 2, got.TurnIndex, "only the inner write may land")
}

func TestMutateMissingSession(t *testing.T) {
    st, _ := newTestStore(t)
    called := false
    _, err := st.Mutate(context.Background(), "ghost", func(*Session) error {
        called = true
        return nil
    })
    require.ErrorIs(t, err, ErrNotFound)
    require.False(t, called)
}

func TestMutateAbortsOnCallbackError(t *testing.T) {
    st, _ := newTestStore(t)
    ctx := context.Background()
    put(t, st, playingSession("s1"))
    boom := errors.New("boom")
    _, err := st.Mutate(ctx, "s1", func(s *Session) error {
        s.Advance("p2", t0)
        return boom
    })
    require.ErrorIs(t, err, boom)
    got, _ := st.Get(ctx, "s1")
    require.Equal(t, 1, got.TurnIndex)
    require.EqualValues(t, 1, got.Revision)
}

func TestDeadlineIndexes(t *testing.T) {
    st, _ := newTestStore(t)
    ctx := context.Background()

    play := playingSession("play")
    put(t, st, play)

    setupDeadline := t0.Add(2 * time.Minute)
    setup := &Session{ID: "setup", GameType: rules.FreestyleChess, Player1ID: "a", Player2ID: "b", Status: StatusSetup, SetupDeadline: &setupDeadline}
    e, _ := rules.For(rules.FreestyleChess)
    setup.State = e.NewState(setup.Players())
    put(t, st, setup)

    ids, err := st.ExpiredTurns(ctx, t0.Add(10*time.Second))
    require.NoError(t, err)
    require.Empty(t, ids)
    ids, err = st.ExpiredTurns(ctx, t0.Add(30*time.Second))
    require.NoError(t, err)
    require.Equal(t, []string{"play"}, ids)

    ids, err = st.ExpiredSetups(ctx, t0.Add(3*time.Minute))
    require.NoError(t, err)
    require.Equal(t, []string{"setup"}, ids)

    _, err = st.Mutate(ctx, "play", func(s *Session) error {
        s.Finish("p1", OutcomeWin)
        return nil
    })
    require.NoError(t, err)
    ids, err = st.ExpiredTurns(ctx, t0.Add(time.Hour))
    require.NoError(t, err)
    require.Empty(t, ids, "finished sessions leave the turn index")

    rec := &recorder{}
    st.AddListener(rec)
    require.NoError(t, st.WatchKeys(ctx, func(tx *Tx) error {
        tx.DeleteSession("setup")
        return nil
    }, SessionKey("setup")))
    ids, err = st.ExpiredSetups(ctx, t0.Add(time.Hour))
    require.NoError(t, err)
    require.Empty(t, ids)
    require.Equal(t, []string{"setup"}, rec.deleted)
}

func TestSessionTTL(t *testing.T) {
    st, mr := newTestStore(t, WithTTL(time.Hour))
    put(t, st, playingSession("s1"))
    require.Equal(t, time.Hour, mr.TTL(SessionKey("s1")))
}

func TestLobbyPersistence(t *testing.T) {
    st, mr := newTestStore(t)
    ctx := context.Background()
    a := &Lobby{ID: "a", Name: "first", Status: LobbyWaiting, CreatedAt: t0}
    b := &Lobby{ID: "b", Name: "second", Status: LobbyWaiting, CreatedAt: t0.Add(time.Second)}
    require.NoError(t, st.SaveLobby(ctx, b))
    require.NoError(t, st.SaveLobby(ctx, a))

    got, err := st.ListLobbies(ctx)
    require.NoError(t, err)
    require.Len(t, got, 2)
    require.Equal(t, "a", got[0].ID)

    mr.Del(LobbyKey("b"))
    got, err = st.ListLobbies(ctx)
    require.NoError(t, err)
    require.Len(t, got, 1)
    members, _ := mr.Members(lobbyIndexKey())
    require.Equal(t, []string{"a"}, members)

    require.NoError(t, st.WatchLobby(ctx, "a", func(tx *Tx) error {
        tx.DeleteLobby("a")
        return nil
    }))
    _, err = st.GetLobby(ctx, "a")
    require.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestViewRedactsRunningMatch(t *testing.T) {
    s := &Session{ID: "s", GameType: rules.RPS, Player1ID: "p1", Player2ID: "p2", Status: StatusPlaying}
    e, _ := rules.For(rules.RPS)
    s.State = e.NewState(s.Players())
    s.State.RPS.Throws["p1"] = "rock"
    require.NotEqual(t, "rock", s.View("p2").State.RPS.Throws["p1"])
    s.Status = StatusFinished
    require.Equal(t, "rock", s.View("p2").State.RPS.Throws["p1"])
}

func TestParseRedisURL(t *testing.T) {
    opts, err := parseRedisURL("redis://:secret@localhost:6380/2")
    require.NoError(t, err)
    require.Equal(t, "localhost:6380", opts.Addr)
    require.Equal(t, "secret", opts.Password)
    require.Equal(t, 2, opts.DB)
    _, err = parseRedisURL("http://localhost")
    require.Error(t, err)
    opts, err = parseRedisURL("rediss://cache:6379")
    require.NoError(t, err)
    require.NotNil(t, opts.TLSConfig)
}
