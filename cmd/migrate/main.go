package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sakatrade/saka/internal/config"
	"github.com/sakatrade/saka/internal/db"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	dir := flag.String("dir", "migrations", "path to migrations directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	migrator, err := db.NewMigrator(cfg.Database.URL, *dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer migrator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	log.Info().Msg("Migrations complete")
}
