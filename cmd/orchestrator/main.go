package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sakatrade/saka/internal/agents"
	"github.com/sakatrade/saka/internal/api"
	"github.com/sakatrade/saka/internal/config"
	"github.com/sakatrade/saka/internal/db"
	"github.com/sakatrade/saka/internal/decision"
	"github.com/sakatrade/saka/internal/exchange"
	"github.com/sakatrade/saka/internal/executor"
	"github.com/sakatrade/saka/internal/notifications"
	"github.com/sakatrade/saka/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	log.Info().
		Str("environment", cfg.App.Environment).
		Bool("testnet", cfg.Exchange.Testnet).
		Msg("Starting trading orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Receipt store
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	database, err := db.New(dbCtx, cfg.Database.URL, cfg.Database.PoolSize)
	dbCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()
	receipts := db.NewReceiptStore(database.Pool())

	// Exchange client. A failed startup ping disables trading but keeps the
	// service up so the read endpoints stay available.
	ex := exchange.NewBinance(exchange.BinanceConfig{
		APIKey:         cfg.Exchange.APIKey,
		SecretKey:      cfg.Exchange.APISecret,
		Testnet:        cfg.Exchange.Testnet,
		RequestsPerSec: cfg.Exchange.RequestsPerSec,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.Timeouts.Exchange)
	if err := ex.Start(pingCtx); err != nil {
		log.Error().Err(err).Msg("Exchange disabled, trade execution will be refused")
	}
	pingCancel()

	// Notifications
	notifier, err := notifications.NewDispatcher(cfg.Notifier)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize notifications")
	}
	defer notifier.Close()

	// Collaborator clients share one pooled HTTP transport
	httpClient := agents.NewHTTPClient()
	apiKey := cfg.Auth.InternalAPIKey

	riskClient := agents.NewRiskClient(
		agents.NewCaller("risk", cfg.Agents.RiskURL, apiKey, cfg.Timeouts.Default, httpClient))
	technicalClient := agents.NewTechnicalClient(
		agents.NewCaller("technical", cfg.Agents.TechnicalURL, apiKey, cfg.Timeouts.Default, httpClient))
	macroClient := agents.NewMacroClient(
		agents.NewCaller("macro", cfg.Agents.MacroURL, apiKey, cfg.Timeouts.Default, httpClient))
	sentimentClient := agents.NewSentimentClient(
		agents.NewCaller("sentiment", cfg.Agents.SentimentURL, apiKey, cfg.Timeouts.Default, httpClient))
	advisorClient := agents.NewAdvisorClient(
		agents.NewCaller("advisor", cfg.Agents.AdvisorURL, apiKey, cfg.Timeouts.Decision, httpClient))
	sizerClient := agents.NewSizerClient(
		agents.NewCaller("sizer", cfg.Agents.SizerURL, apiKey, cfg.Timeouts.Decision, httpClient))

	engine := decision.NewEngine(decision.DefaultThresholds(), advisorClient, sizerClient)
	sink := executor.NewSink(ex, receipts)

	orch := orchestrator.New(orchestrator.Options{
		Risk:                riskClient,
		Technical:           technicalClient,
		Macro:               macroClient,
		Sentiment:           sentimentClient,
		Decider:             engine,
		Executor:            sink,
		Notifier:            notifier,
		Warmup:              cfg.Cycle.Warmup,
		Timeouts:            cfg.Timeouts,
		MaxConcurrentCycles: cfg.Cycle.MaxConcurrentCycles,
	})

	server := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		InternalAPIKey: cfg.Auth.InternalAPIKey,
		Cycles:         orch,
		Receipts:       receipts,
		DB:             database,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Shutdown complete")
}
