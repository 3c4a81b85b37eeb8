package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/kentoooo/mellowq/app"
	"github.com/kentoooo/mellowq/config"
	"github.com/kentoooo/mellowq/database"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/push"
	"github.com/kentoooo/mellowq/ratelimit"
	"github.com/kentoooo/mellowq/routes"
	"github.com/kentoooo/mellowq/service"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.LogJSON {
		log.UseJSON()
	}

	if cfg.GenVAPIDKeys {
		private, public, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			log.Fatal("main.gen_vapid_keys: ", err)
		}
		fmt.Printf("MELLOWQ_VAPID_PUBLIC_KEY=%s\nMELLOWQ_VAPID_PRIVATE_KEY=%s\n", public, private)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := database.Open(openCtx, cfg.DBUrl)
	cancel()
	if err != nil {
		log.Fatal("main.db.open: ", err)
	}
	defer store.Close()

	limiterStore, closeLimiter, err := openLimiterStore(ctx, cfg)
	if err != nil {
		log.Fatal("main.ratelimit: ", err)
	}
	defer closeLimiter()

	dispatcher := push.NewDispatcher(push.Config{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: cfg.VAPIDSubscriber,
		TTL:        int(cfg.PushTTL / time.Second),
		Timeout:    cfg.PushTimeout,
	})
	if !cfg.PushEnabled() {
		log.Warn("main.push: VAPID keys not set, push notifications are disabled")
	}

	app := app.App{
		Service: service.New(service.Options{
			Store:   store,
			Limiter: ratelimit.New(limiterStore, nil),
			Push:    dispatcher,
			BaseURL: cfg.BaseURL,
		}),
		Push:   dispatcher,
		Config: cfg,
	}

	handler := routes.Wire(app)

	err = runServer(ctx, cfg, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server: ", err)
	}
}

// openLimiterStore shares rate limit counters through Redis when configured,
// otherwise keeps them in process.
func openLimiterStore(ctx context.Context, cfg config.Config) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(), func() {}, nil
	}
	client, err := ratelimit.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("main.ratelimit: using redis counters")
	return ratelimit.NewRedisStore(client), func() { client.Close() }, nil
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Listening on " + cfg.Url())
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
