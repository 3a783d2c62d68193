// iwomail keeps a local mirror of Exchange ActiveSync accounts.
//
// Usage:
//
//	iwomail serve              Start the sync daemon and control API
//	iwomail sync <account-id>  Run one sync pass for a single account
//	iwomail version            Print version information
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dedovmosol/iwomail/internal/account"
	"github.com/dedovmosol/iwomail/internal/config"
	"github.com/dedovmosol/iwomail/internal/mirror"
	"github.com/dedovmosol/iwomail/internal/storage"
	"github.com/dedovmosol/iwomail/internal/sync"
	"github.com/dedovmosol/iwomail/internal/web"
)

var version = "1.0.0-dev"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "sync":
		runSync()
	case "version":
		fmt.Printf("iwomail %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: iwomail <command>

Commands:
  serve              Start the sync daemon and control API
  sync <account-id>  Run one sync pass for a single account
  version            Print version information

Environment:
  IWOMAIL_CONFIG  Config file path (default: ~/.config/iwomail/config.yaml)

  S3_ENDPOINT     S3/MinIO endpoint for the blob cache (optional)
  S3_ACCESS_KEY   S3 access key
  S3_SECRET_KEY   S3 secret key
  S3_BUCKET       S3 bucket (default: iwomail)`)
}

func loadConfig() *config.Config {
	path := envOr("IWOMAIL_CONFIG", config.DefaultConfigPath())
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("ERROR: load config: %v", err)
	}
	return cfg
}

func buildEngine(cfg *config.Config) (*account.Store, *mirror.Store, *sync.Engine) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("ERROR: create data dir: %v", err)
	}

	accounts := account.NewStore(cfg.DataDir)

	store, err := mirror.NewStore(filepath.Join(cfg.DataDir, "mirror.db"))
	if err != nil {
		log.Fatalf("ERROR: open mirror database: %v", err)
	}

	blobs, err := storage.NewBlobStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("ERROR: init blob store: %v", err)
	}

	engine := sync.NewEngine(accounts, store, blobs, nil, sync.Options{
		MaxParallel:       cfg.Sync.MaxParallel,
		WindowSize:        cfg.Sync.WindowSize,
		RetryAttempts:     cfg.Sync.RetryAttempts,
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		BodyTruncation:    cfg.Sync.BodyTruncationKB * 1024,
	})
	return accounts, store, engine
}

func runServe() {
	cfg := loadConfig()
	accounts, store, engine := buildEngine(cfg)
	defer store.Close()

	service := sync.NewService(engine)
	defer service.Shutdown()

	// Schedule periodic syncs for enabled accounts.
	accts, err := accounts.List()
	if err != nil {
		log.Fatalf("ERROR: list accounts: %v", err)
	}
	for _, a := range accts {
		if !a.Sync.Enabled {
			continue
		}
		interval, err := time.ParseDuration(a.Sync.Interval)
		if err != nil || interval <= 0 {
			log.Printf("WARN: account %s has invalid sync interval %q, skipping schedule", a.ID, a.Sync.Interval)
			continue
		}
		service.Schedule(a.ID, interval)
	}

	router := web.NewRouter(web.Config{
		Accounts: accounts,
		Mirror:   store,
		Engine:   engine,
		Service:  service,
	})

	log.Printf("INFO: iwomail %s listening on %s (data dir %s)", version, cfg.ListenAddr, cfg.DataDir)
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		log.Fatalf("ERROR: server: %v", err)
	}
}

func runSync() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: iwomail sync <account-id>")
		os.Exit(1)
	}
	accountID := os.Args[2]

	cfg := loadConfig()
	_, store, engine := buildEngine(cfg)
	defer store.Close()

	start := time.Now()
	changes, err := engine.SyncFolders(context.Background(), accountID)
	if err != nil {
		log.Fatalf("ERROR: sync %s: %v", accountID, err)
	}
	log.Printf("INFO: account %s synced: %d changes in %s", accountID, changes, time.Since(start).Round(time.Millisecond))
}
