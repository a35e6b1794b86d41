// vpaloader refreshes the book-value store from CVM monthly filings.
// By default it runs one refresh and exits; with -cron it stays alive and
// refreshes on a schedule. It is the only writer of the SQLite store and
// never runs concurrently with itself.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"FIILens/internal/config"
	"FIILens/internal/cvm"
	"FIILens/internal/fundstore"
	"FIILens/internal/ticker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	fundsCSV := flag.String("funds", "", "optional ticker,cnpj registry CSV to import")
	cronSpec := flag.String("cron", "", "run on a cron schedule instead of once (e.g. \"0 0 6 * * *\")")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" && *cfgPath == "configs/config.yaml" {
		*cfgPath = v
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	store, err := fundstore.Open(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open fund store: %v", err)
	}
	defer store.Close()

	if *fundsCSV != "" {
		if err := importRegistry(store, *fundsCSV, cfg.Aliases); err != nil {
			log.Fatalf("[FATAL] import fund registry: %v", err)
		}
	}

	loader := cvm.NewLoader(cfg.CVM.BaseURL, store)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *cronSpec == "" {
		if err := loader.Run(ctx); err != nil {
			log.Fatalf("[FATAL] refresh: %v", err)
		}
		log.Println("[INFO] refresh complete")
		return
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(*cronSpec, func() {
		log.Println("[INFO] scheduled refresh starting")
		if err := loader.Run(ctx); err != nil {
			log.Printf("[ERROR] scheduled refresh: %v", err)
		}
	}); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	c.Start()
	log.Printf("[INFO] vpaloader scheduled: %s", *cronSpec)

	<-ctx.Done()
	c.Stop()
	log.Println("[INFO] vpaloader stopped")
}

func importRegistry(store *fundstore.Store, path string, aliases map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	funds, err := cvm.ReadFundRegistry(f, ticker.NewNormalizer(aliases))
	if err != nil {
		return err
	}
	if err := store.UpsertFunds(funds); err != nil {
		return err
	}
	log.Printf("[INFO] fund registry imported: %d entries", len(funds))
	return nil
}
