package main

import (
	"context"
	"log"
	"os"

	"github.com/atomlessAK/shuma-gorath/internal/admin"
	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/enforcement"
	"github.com/atomlessAK/shuma-gorath/internal/httpapi"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/observability"
	"github.com/atomlessAK/shuma-gorath/internal/policy"
)

func main() {
	log.Println("Starting Shuma-Gorath bot-defense edge engine...")

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	secrets := config.LoadSecrets()

	store, closeStore := connectStore(cfg)
	defer closeStore()

	metrics := observability.New()
	rate := enforcement.NewRateCounter(store, nil)

	hub := admin.NewHub()
	go hub.Run()
	events := admin.NewKVSink(store)
	sink := admin.Multi{Sinks: []admin.Sink{events, admin.HubSink{Hub: hub}}}

	pipeline := policy.New(cfg, secrets, store, rate, metrics, sink)

	server := &httpapi.Server{
		Config:   cfg,
		Secrets:  secrets,
		Store:    store,
		Rate:     rate,
		Metrics:  metrics,
		Pipeline: pipeline,
		Events:   events,
		Hub:      hub,
	}
	router := httpapi.NewRouter(server)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("Engine running on :%s (site=%s)\n", port, cfg.SiteID)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// connectStore wires a Postgres-backed KV store when DATABASE_URL is set,
// falling back to the in-memory driver for local development and tests:
// connect if configured, warn and continue otherwise.
func connectStore(cfg *config.Config) (kvstore.Store, func()) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("DATABASE_URL not set, using in-memory KV store")
		mem := kvstore.NewMemory()
		return mem, mem.Close
	}

	pg, err := kvstore.Connect(context.Background(), dbURL, cfg.SiteID)
	if err != nil {
		log.Printf("Warning: failed to connect to Postgres KV store, falling back to in-memory: %v", err)
		mem := kvstore.NewMemory()
		return mem, mem.Close
	}
	if err := pg.InitSchema(context.Background()); err != nil {
		log.Printf("Warning: KV schema init failed: %v", err)
	}
	return pg, pg.Close
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
