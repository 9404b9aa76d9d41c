package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/park285/turnsync/internal/app"
    appcfg "github.com/park285/turnsync/internal/config"
    "github.com/park285/turnsync/internal/obslog"
)

func main() {
    // .env is optional; real environment wins
    _ = godotenv.Load()

    if err := obslog.InitFromEnv(); err != nil {
        log.Fatalf("logger init error: %v", err)
    }
    defer obslog.Sync()

    cfg, err := appcfg.Load()
    if err != nil {
        obslog.L().Fatal("config_error", zap.Error(err))
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    deps, err := app.New(ctx, cfg)
    if err != nil {
        obslog.L().Fatal("init_error", zap.Error(err))
    }
    defer deps.Close()

    srv := &http.Server{
        Addr:              cfg.HTTPAddr,
        Handler:           deps.HTTP,
        ReadHeaderTimeout: 5 * time.Second,
    }

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        obslog.L().Info("http_listen", zap.String("addr", cfg.HTTPAddr))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        <-gctx.Done()
        sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return srv.Shutdown(sctx)
    })
    g.Go(func() error { return deps.Sweeper.Run(gctx) })
    if deps.Webhook != nil {
        g.Go(func() error { return deps.Webhook.Run(gctx) })
    }

    if err := g.Wait(); err != nil {
        obslog.L().Error("shutdown_error", zap.Error(err))
        return
    }
    obslog.L().Info("shutdown_complete")
}
