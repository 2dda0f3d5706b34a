package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dca-trade-bot-go/internal/binance"
	"dca-trade-bot-go/internal/config"
	"dca-trade-bot-go/internal/database"
	"dca-trade-bot-go/internal/dca"
	"dca-trade-bot-go/internal/logger"
	"dca-trade-bot-go/internal/secrets"
	"dca-trade-bot-go/internal/store"
	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "run a single strategy cycle and exit")
	flag.Parse()

	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Resolve exchange credentials through the secrets provider when they
	// are not set directly in the config file.
	if cfg.Binance.ApiKey == "" || cfg.Binance.SecretKey == "" {
		provider := newSecretsProvider(&cfg, log)
		cfg.Binance.ApiKey = mustSecret(provider, secrets.NameBinanceAPIKey, log)
		cfg.Binance.SecretKey = mustSecret(provider, secrets.NameBinanceAPISecret, log)
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")
	st := store.New(db)

	// Initialize Binance REST client
	restClient := binance.NewRestClient(&cfg.Binance, log)
	if _, err := restClient.GetServerTime(); err != nil {
		log.Fatal("Failed to connect to Binance API", zap.Error(err))
	}
	log.Info("Successfully connected to Binance API.")

	// Initialize the strategy engine
	engine, err := dca.NewEngine(log, &cfg, restClient, st)
	if err != nil {
		log.Fatal("Failed to initialize strategy engine", zap.Error(err))
	}

	if *once {
		if err := engine.RunCycle(); err != nil {
			log.Error("Strategy cycle finished with failures", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	engine.Run(ctx)

	log.Info("Bot has been shut down.")
}

func newSecretsProvider(cfg *config.Config, log *zap.Logger) secrets.Provider {
	if cfg.Vault.Provider == "keyvault" {
		log.Info("Using Azure Key Vault secrets provider", zap.String("vault", cfg.Vault.URL))
		return secrets.NewKeyVaultClient(&cfg.Vault, logger.Named(log, "keyvault"))
	}
	log.Info("Using environment secrets provider")
	return secrets.NewEnvProvider(logger.Named(log, "env-secrets"))
}

func mustSecret(provider secrets.Provider, name string, log *zap.Logger) string {
	value, err := provider.GetSecret(name)
	if err != nil {
		log.Fatal("Failed to resolve secret", zap.String("name", name), zap.Error(err))
	}
	return value
}
