package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "os"
    "os/signal"
    "sync"
    "syscall"
    "time"

    "github.com/park285/turnsync/internal/push"
    "github.com/park285/turnsync/internal/session"
    "github.com/park285/turnsync/pkg/syncdto"
)

func main() {
    base := flag.String("url", getenv("TURNSYNC_WS_URL", "ws://localhost:8080"), "websocket base url")
    sessionID := flag.String("session", "", "session id to watch")
    player := flag.String("player", "", "seated player id to view as")
    flag.Parse()

    if *sessionID == "" || *player == "" {
        log.Fatal("-session and -player are required")
    }
    wsURL, err := push.WatchURL(*base, *sessionID, *player)
    if err != nil {
        log.Fatalf("bad url: %v", err)
    }

    done := make(chan struct{})
    c := push.NewClient(wsURL, 5)
    c.OnStateChange(closeOnTerminal(done))
    c.OnSnapshot(func(frame syncdto.Snapshot) {
        if frame.Type == syncdto.SnapshotTypeDeleted {
            fmt.Printf("session %s deleted\n", frame.SessionID)
            return
        }
        var s session.Session
        if err := json.Unmarshal(frame.Session, &s); err != nil {
            log.Printf("decode snapshot: %v", err)
            return
        }
        fmt.Println(summary(&s))
    })

    cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    if err := c.Connect(cctx); err != nil {
        log.Printf("WS connect error: %v (retrying)", err)
    }
    cancel()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    select {
    case <-sigCh:
    case <-done:
    }

    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    _ = c.Close(ctx)
}

// closeOnTerminal returns a state callback that closes done once the client
// is closed or has given up. The listen goroutine and Close can both report
// a terminal state.
func closeOnTerminal(done chan struct{}) func(push.State) {
    var once sync.Once
    return func(state push.State) {
        log.Printf("WS state: %s", state)
        if state == push.StateClosed || state == push.StateFailed {
            once.Do(func() { close(done) })
        }
    }
}

func summary(s *session.Session) string {
    line := fmt.Sprintf("rev=%d %s %s turn=%d", s.Revision, s.GameType, s.Status, s.TurnIndex)
    if s.CurrentPlayerID != "" {
        line += " on_move=" + s.CurrentPlayerID
        if s.TurnDeadline != nil {
            line += " deadline=" + s.TurnDeadline.Format(time.RFC3339)
        }
    }
    if s.LastMove != nil && s.LastMove.Notation != "" {
        line += " last=" + s.LastMove.Notation
    }
    if c := s.LastMove; c != nil && c.Combat != nil {
        line += fmt.Sprintf(" combat=%s(%s)x%s(%s)->%s", c.Combat.AttackerID, c.Combat.AttackerRole, c.Combat.DefenderID, c.Combat.DefenderRole, c.Combat.Result)
    }
    if s.Finished() {
        line += fmt.Sprintf(" outcome=%s winner=%q", s.Outcome, s.WinnerID)
    }
    return line
}

func getenv(k, def string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return def
}
