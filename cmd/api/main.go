package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/punchamoorthee/bankguard/internal/api"
	"github.com/punchamoorthee/bankguard/internal/config"
	"github.com/punchamoorthee/bankguard/internal/csrf"
	"github.com/punchamoorthee/bankguard/internal/domain"
	"github.com/punchamoorthee/bankguard/internal/service"
	"github.com/punchamoorthee/bankguard/internal/session"
	"github.com/punchamoorthee/bankguard/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	accountStore, cleanup, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	var guard csrf.Guard
	switch cfg.CSRFMode {
	case config.ModeSameSite:
		guard = csrf.NewSameSite()
	default:
		guard = csrf.NewDoubleSubmit(csrf.Config{Secure: cfg.SecureCookies})
	}

	sessions := session.NewManager(accountStore)
	engine := service.NewEngine(accountStore)

	handler, err := api.NewHandler(accountStore, sessions, engine, guard, cfg.SecureCookies)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Server starting on :%s (csrf mode: %s)", cfg.Port, cfg.CSRFMode)
	if err := http.ListenAndServe(":"+cfg.Port, handler.Router()); err != nil {
		log.Fatal(err)
	}
}

// openStore picks the Postgres backend when DB_SOURCE is set and falls
// back to the in-memory seeded store otherwise.
func openStore(cfg *config.Config) (domain.Store, func(), error) {
	if cfg.DBSource != "" {
		pg, err := store.NewPostgres(context.Background(), cfg.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	seed, err := store.SeedAccounts()
	if err != nil {
		return nil, nil, err
	}
	mem, err := store.NewMemory(seed)
	if err != nil {
		return nil, nil, err
	}
	return mem, func() {}, nil
}
