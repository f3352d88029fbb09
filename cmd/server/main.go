/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the stars ledger server: configuration, storage,
  engine, router, scheduler, graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, then environment overrides
  2. Initialize SQLite store
  3. Build ledger engine and command router
  4. Start the announcement scheduler
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: stars.db, ":memory:" supported)

ENVIRONMENT:
  STARS_PORT               overrides -port
  STARS_DB                 overrides -db
  STARS_ANNOUNCE_CHAT_ID   chat that receives weekly/monthly digests
  STARS_BOT_API_URL        bot API root for outbound sends (log-only if unset)
  STARS_WEEKLY_DAY         weekday of the weekly digest, 0=Sunday (default 0)
  STARS_ANNOUNCE_HOUR      hour of both digests (default 12)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop the scheduler, drain HTTP (30s), close the store.

SEE ALSO:
  - api/server.go: router configuration
  - schedule/scheduler.go: announcement loop
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/gleam/stars-engine/api"
	"github.com/gleam/stars-engine/ledger"
	"github.com/gleam/stars-engine/schedule"
	"github.com/gleam/stars-engine/store/sqlite"
)

type config struct {
	Port           int    `env:"STARS_PORT"`
	DBPath         string `env:"STARS_DB"`
	AnnounceChatID int64  `env:"STARS_ANNOUNCE_CHAT_ID"`
	BotAPIURL      string `env:"STARS_BOT_API_URL"`
	WeeklyDay      int    `env:"STARS_WEEKLY_DAY" envDefault:"0"`
	AnnounceHour   int    `env:"STARS_ANNOUNCE_HOUR" envDefault:"12"`
}

func main() {
	// Flags set the defaults; environment variables override them.
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "stars.db", "SQLite database path")
	flag.Parse()

	cfg := config{Port: *port, DBPath: *dbPath}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Core engine and router
	engine := ledger.NewEngine(store)
	handler := api.NewHandler(engine)
	router := api.NewRouter(handler)

	// Announcement scheduler
	var sender api.Sender = api.LogSender{}
	if cfg.BotAPIURL != "" {
		sender = &api.HTTPSender{BaseURL: cfg.BotAPIURL}
	}
	schedCfg := schedule.DefaultConfig()
	schedCfg.WeeklyDay = time.Weekday(cfg.WeeklyDay)
	schedCfg.Hour = cfg.AnnounceHour

	scheduler := schedule.New(api.NewAnnouncer(sender, cfg.AnnounceChatID), schedCfg)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
