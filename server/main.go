package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"blackjack-table/server/store"
)

func mustEnv(logger *log.Logger, keys ...string) {
	for _, k := range keys {
		if os.Getenv(k) == "" {
			logger.Fatalf("missing required env var %s; put it in .env (dev) or set it on the host (prod)", k)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func main() {
	_ = godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if asBool(os.Getenv("DEBUG")) {
		logger.SetLevel(log.DebugLevel)
	}

	var migrate bool
	for _, a := range os.Args[1:] {
		if a == "--migrate" {
			migrate = true
		}
	}

	mustEnv(logger, "DATABASE_URL")
	dsn := getenv("DATABASE_URL", "")
	port := getenv("PORT", "8080")

	db, err := store.Open(dsn)
	if err != nil {
		logger.Fatal("open store", "err", err)
	}
	defer db.Close(context.Background())

	if migrate || asBool(os.Getenv("AUTO_MIGRATE")) {
		if err := store.Migrate(context.Background(), db); err != nil {
			logger.Fatal("migrate", "err", err)
		}
		logger.Info("migrated")
		if migrate {
			return
		}
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: Router(db, logger),
		// No WriteTimeout: /api/live holds its response open.
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("listening", "addr", "http://localhost:"+port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", "err", err)
	}
}
