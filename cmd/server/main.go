package main

import (
	"errors"
	"log"
	"net/http"
	"os"

	"scribble-squad/internal/config"
	"scribble-squad/internal/db"
	"scribble-squad/internal/server"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	conn, err := db.Open()
	switch {
	case errors.Is(err, db.ErrNoDatabase):
		log.Println("no DATABASE_URL, running without the persistence journal")
	case err != nil:
		log.Fatalf("database connection failed: %v", err)
	default:
		if err := db.Configure(conn, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns,
			cfg.DBConnMaxLifetimeSeconds, cfg.DBConnMaxIdleTimeSeconds); err != nil {
			log.Fatalf("database pool setup failed: %v", err)
		}
		if err := db.Migrate(conn); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
	}

	srv, err := server.New(conn, cfg)
	if err != nil {
		log.Fatalf("server setup failed: %v", err)
	}

	addr := ":3001"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}
	log.Printf("scribble-squad server listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}
