package app

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/require"

    "github.com/park285/turnsync/internal/config"
)

func testConfig(redisURL string) *config.AppConfig {
    return &config.AppConfig{
        RedisURL:      redisURL,
        TurnBudget:    30 * time.Second,
        SetupBudget:   2 * time.Minute,
        PenaltyLimit:  2,
        SweepInterval: time.Second,
        SessionTTL:    time.Hour,
        WebhookURL:    "http://127.0.0.1:1/hook",
        WebhookRetry:  1,
        WebhookQueue:  4,
        WebhookTTL:    time.Second,
    }
}

func TestNewWiresRedisOnlyGraph(t *testing.T) {
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    defer mr.Close()

    d, err := New(context.Background(), testConfig("redis://"+mr.Addr()))
    require.NoError(t, err)
    defer d.Close()

    require.Nil(t, d.Results)
    require.NotNil(t, d.Webhook)

    srv := httptest.NewServer(d.HTTP)
    defer srv.Close()
    resp, err := http.Get(srv.URL + "/healthz")
    require.NoError(t, err)
    resp.Body.Close()
    require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildWithoutWebhook(t *testing.T) {
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    defer mr.Close()
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

    cfg := testConfig("")
    cfg.WebhookURL = ""
    d, err := Build(rdb, cfg)
    require.NoError(t, err)
    defer d.Close()
    require.Nil(t, d.Webhook)

    cfg.MessagesDir = "/does/not/exist"
    _, err = Build(rdb, cfg)
    require.Error(t, err)
}

func TestNewFailsOnBadRedis(t *testing.T) {
    _, err := New(context.Background(), testConfig("http://nope"))
    require.Error(t, err)
    _, err = New(context.Background(), nil)
    require.Error(t, err)
}
