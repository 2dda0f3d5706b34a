package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"dca-trade-bot-go/internal/binance"
	"dca-trade-bot-go/internal/config"
	"dca-trade-bot-go/internal/database"
	"dca-trade-bot-go/internal/logger"
	"dca-trade-bot-go/internal/notify"
	"dca-trade-bot-go/internal/secrets"
	"dca-trade-bot-go/internal/store"
	"go.uber.org/zap"
)

func main() {
	balance := flag.Bool("balance", false, "check the quote balance and alert when low")
	report := flag.Bool("report", false, "email the portfolio performance report")
	flag.Parse()

	if !*balance && !*report {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -balance and/or -report")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// The SMTP password never lives in the config file; pull it from the
	// secrets provider unless explicitly injected.
	if cfg.Notifier.Password == "" {
		provider := secrets.NewEnvProvider(logger.Named(log, "env-secrets"))
		password, err := provider.GetSecret(secrets.NameSMTPPassword)
		if err != nil && !errors.Is(err, secrets.ErrSecretNotFound) {
			log.Fatal("Failed to resolve SMTP password", zap.Error(err))
		}
		cfg.Notifier.Password = password
	}

	restClient := binance.NewRestClient(&cfg.Binance, log)
	sender := notify.NewSMTPNotifier(&cfg.Notifier, logger.Named(log, "smtp"))

	failed := false
	if *balance {
		watcher := notify.NewBalanceWatcher(restClient, sender, cfg.DCA.QuoteAsset, log)
		sent, err := watcher.CheckAndNotify(cfg.Notifier.Recipient, cfg.Notifier.LowBalanceThreshold)
		if err != nil {
			log.Error("Balance check failed", zap.Error(err))
			failed = true
		} else {
			log.Info("Balance check complete", zap.Bool("alert_sent", sent))
		}
	}

	if *report {
		db, err := database.NewDatabase(cfg.Database.DSN)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		reporter := notify.NewPortfolioReporter(store.New(db), restClient, sender, log)
		if err := reporter.GenerateAndSend(cfg.Notifier.Recipient); err != nil {
			log.Error("Portfolio report failed", zap.Error(err))
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}
