package push

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/turnsync/pkg/syncdto"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

type SnapshotCallback func(syncdto.Snapshot)
type StateCallback func(State)

// Client watches one session and survives dropped connections. Snapshots
// are handed to callbacks in revision order; stale ones are dropped.
type Client struct {
	wsURL string

	connM sync.Mutex
	conn  *websocket.Conn

	stateM sync.RWMutex
	state  State

	cbM      sync.RWMutex
	snapCbs  []SnapshotCallback
	stateCbs []StateCallback

	lastRev int64
	revM    sync.Mutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// WatchURL builds the handler URL for a seated player. base is ws:// or
// wss://.
func WatchURL(base, sessionID, playerID string) (string, error) {
	if sessionID == "" || playerID == "" {
		return "", errors.New("session and player are required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("session", sessionID)
	q.Set("player", playerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func NewClient(wsURL string, maxReconnectAttempts int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

func (c *Client) OnSnapshot(cb SnapshotCallback) {
	c.cbM.Lock()
	c.snapCbs = append(c.snapCbs, cb)
	c.cbM.Unlock()
}

func (c *Client) OnStateChange(cb StateCallback) {
	c.cbM.Lock()
	c.stateCbs = append(c.stateCbs, cb)
	c.cbM.Unlock()
}

func (c *Client) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

// Connect dials once. On failure a background reconnect is scheduled and
// the dial error is returned.
func (c *Client) Connect(ctx context.Context) error {
	switch c.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	c.setState(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	c.connM.Lock()
	if c.isStopping() {
		c.connM.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return context.Canceled
	}
	c.conn = conn
	c.wg.Add(2)
	c.connM.Unlock()
	c.setState(StateConnected)

	go c.listen(conn)
	go c.pingLoop(conn)
	return nil
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var frame syncdto.Snapshot
		if err := wsjson.Read(c.rootCtx, conn, &frame); err != nil {
			if c.isStopping() {
				return
			}
			c.dropConn(conn, "reconnect")
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				// server ended the stream on purpose (session deleted)
				c.setState(StateClosed)
				return
			}
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}
		if frame.Type == syncdto.SnapshotTypeSession && !c.advance(frame.Revision) {
			continue
		}
		c.cbM.RLock()
		cbs := append([]SnapshotCallback(nil), c.snapCbs...)
		c.cbM.RUnlock()
		for _, cb := range cbs {
			cb(frame)
		}
	}
}

func (c *Client) advance(rev int64) bool {
	c.revM.Lock()
	defer c.revM.Unlock()
	if rev <= c.lastRev {
		return false
	}
	c.lastRev = rev
	return true
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			if c.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// listen notices the closed conn and reconnects
				c.dropConn(conn, "ping failure")
				return
			}
		}
	}
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 {
		c.setState(StateFailed)
		return
	}
	c.setState(StateReconnecting)
	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			if err := c.dial(c.rootCtx); err != nil {
				continue
			}
			return
		}
		c.setState(StateFailed)
	}()
}

// backoffDuration doubles from 100ms and stops growing after six attempts.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(100*(1<<(attempt-1))) * time.Millisecond
}

func (c *Client) setState(s State) {
	c.stateM.Lock()
	c.state = s
	c.stateM.Unlock()

	c.cbM.RLock()
	cbs := append([]StateCallback(nil), c.stateCbs...)
	c.cbM.RUnlock()
	for _, cb := range cbs {
		cb(s)
	}
}

func (c *Client) current() *websocket.Conn {
	c.connM.Lock()
	defer c.connM.Unlock()
	return c.conn
}

func (c *Client) dropConn(conn *websocket.Conn, reason string) {
	c.connM.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connM.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, reason)
}

// Close stops reconnecting and waits for the reader goroutines.
func (c *Client) Close(ctx context.Context) error {
	c.connM.Lock()
	c.stopOnce.Do(func() { close(c.stopCh) })
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.setState(StateClosed)
		return nil
	}
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
