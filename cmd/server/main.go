package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FIILens/internal/api"
	"FIILens/internal/config"
	"FIILens/internal/fundstore"
	"FIILens/internal/ledger"
	"FIILens/internal/quote"
	"FIILens/internal/ticker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] FIILens server starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Open book-value store (read-only during interactive use)
	store, err := fundstore.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open fund store: %v", err)
	}
	defer store.Close()

	normalizer := ticker.NewNormalizer(cfg.Aliases)
	fetcher := quote.NewYahooFetcher(cfg.Quote.Suffix, cfg.Quote.PadDays,
		time.Duration(cfg.Quote.TimeoutSeconds)*time.Second, cfg.Proxy)
	log.Printf("[INFO] quote source: %s", fetcher.Name())

	loader := ledger.NewLoader(normalizer)
	handler := api.NewHandler(store, fetcher, loader, normalizer, cfg)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.SetupRoutes(handler),
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[FATAL] serve: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] shutdown: %v", err)
	}
	log.Println("[INFO] FIILens server stopped")
}
