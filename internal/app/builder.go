// Package app wires the turnsync dependency graph from config.
package app

import (
    "context"
    "fmt"
    "math/rand"
    "net/http"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/park285/turnsync/internal/config"
    "github.com/park285/turnsync/internal/httpapi"
    "github.com/park285/turnsync/internal/lobby"
    "github.com/park285/turnsync/internal/match"
    "github.com/park285/turnsync/internal/msgcat"
    "github.com/park285/turnsync/internal/notify"
    "github.com/park285/turnsync/internal/obslog"
    "github.com/park285/turnsync/internal/push"
    "github.com/park285/turnsync/internal/results"
    "github.com/park285/turnsync/internal/session"
    "github.com/park285/turnsync/internal/sweep"
)

type Deps struct {
    Redis   *redis.Client
    Store   *session.Store
    Lobby   *lobby.Coordinator
    Match   *match.Controller
    Sweeper *sweep.Sweeper
    Webhook *notify.Webhook     // nil without WEBHOOK_URL
    Results *results.Repository // nil without DATABASE_URL
    Catalog *msgcat.Catalog
    HTTP    http.Handler
}

// New connects to Redis (and Postgres when configured) and builds every
// component. The caller owns Close.
func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
    if cfg == nil {
        return nil, fmt.Errorf("nil config")
    }
    rdb, err := session.Connect(ctx, cfg.RedisURL)
    if err != nil {
        return nil, fmt.Errorf("connect redis: %w", err)
    }
    d, err := Build(rdb, cfg)
    if err != nil {
        _ = rdb.Close()
        return nil, err
    }

    if cfg.DatabaseURL != "" {
        repo, err := results.NewRepository(cfg.DatabaseURL)
        if err != nil {
            _ = d.Close()
            return nil, fmt.Errorf("init results repository: %w", err)
        }
        sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
        err = repo.EnsureSchema(sctx)
        cancel()
        if err != nil {
            _ = repo.Close()
            _ = d.Close()
            return nil, fmt.Errorf("ensure results schema: %w", err)
        }
        d.Results = repo
        d.Store.AddListener(results.NewRecorder(repo))
    } else {
        obslog.L().Info("results_disabled", zap.String("reason", "DATABASE_URL not set"))
    }
    return d, nil
}

// Build assembles everything that only needs Redis.
func Build(rdb *redis.Client, cfg *config.AppConfig) (*Deps, error) {
    store := session.NewStore(rdb, session.WithTTL(cfg.SessionTTL))
    lc := lobby.New(store, lobby.Config{SetupBudget: cfg.SetupBudget, TurnBudget: cfg.TurnBudget},
        lobby.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))))
    mc := match.NewController(store, match.Config{TurnBudget: cfg.TurnBudget, PenaltyLimit: cfg.PenaltyLimit})
    sw := sweep.New(store, mc, lc, cfg.SweepInterval)

    catalog, err := msgcat.New(cfg.MessagesDir)
    if err != nil {
        return nil, fmt.Errorf("load messages: %w", err)
    }

    store.AddListener(lc)
    store.AddListener(push.NewPublisher(rdb))

    var hook *notify.Webhook
    if cfg.WebhookURL != "" {
        hook = notify.NewWebhook(cfg.WebhookURL,
            notify.WithRetry(cfg.WebhookRetry),
            notify.WithQueueSize(cfg.WebhookQueue),
            notify.WithTimeout(cfg.WebhookTTL),
        )
        store.AddListener(hook)
    }

    api := httpapi.NewServer(store, lc, mc, sw, catalog, push.NewHandler(store, rdb))
    return &Deps{
        Redis:   rdb,
        Store:   store,
        Lobby:   lc,
        Match:   mc,
        Sweeper: sw,
        Webhook: hook,
        Catalog: catalog,
        HTTP:    api.Routes(),
    }, nil
}

func (d *Deps) Close() error {
    if d == nil { return nil }
    if d.Results != nil { _ = d.Results.Close() }
    if d.Redis != nil { return d.Redis.Close() }
    return nil
}
