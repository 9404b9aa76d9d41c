package session

import (
    "context"
    "crypto/tls"
    "fmt"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// Connect opens a Redis client from a redis:// or rediss:// URL and pings it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
    if strings.TrimSpace(redisURL) == "" {
        return nil, fmt.Errorf("REDIS_URL required for session store")
    }
    opts, err := parseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := rdb.Ping(pingCtx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    if u.Host == "" { return nil, fmt.Errorf("redis url without host") }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" {
        n, err := strconv.Atoi(p)
        if err != nil { return nil, fmt.Errorf("redis db %q: %w", p, err) }
        db = n
    }
    pass, _ := u.User.Password()
    opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
    if u.Scheme == "rediss" { opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12} }
    return opts, nil
}
