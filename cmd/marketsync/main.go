package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"dca-trade-bot-go/internal/binance"
	"dca-trade-bot-go/internal/coingecko"
	"dca-trade-bot-go/internal/config"
	"dca-trade-bot-go/internal/database"
	"dca-trade-bot-go/internal/logger"
	"dca-trade-bot-go/internal/marketsync"
	"dca-trade-bot-go/internal/store"
	"go.uber.org/zap"
)

func main() {
	markets := flag.Bool("markets", true, "record the top market-cap listings")
	balances := flag.Bool("balances", true, "record a wallet balance snapshot")
	prune := flag.Bool("prune", true, "drop trade records older than one year")
	flag.Parse()

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

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	st := store.New(db)

	restClient := binance.NewRestClient(&cfg.Binance, log)
	marketData := coingecko.NewClient(&cfg.CoinGecko, logger.Named(log, "coingecko"))

	syncer := marketsync.NewSyncer(restClient, marketData, st, cfg.DCA.QuoteAsset, log)

	failed := false
	if *markets {
		count, err := syncer.SyncMarketData()
		if err != nil {
			log.Error("Market data sync failed", zap.Error(err))
			failed = true
		} else {
			log.Info("Market data sync complete", zap.Int("entries", count))
		}
	}
	if *balances {
		count, err := syncer.SyncBalances()
		if err != nil {
			log.Error("Balance snapshot failed", zap.Error(err))
			failed = true
		} else {
			log.Info("Balance snapshot complete", zap.Int("balances", count))
		}
	}

	if *prune {
		cutoff := time.Now().UTC().AddDate(-1, 0, 0)
		removed, err := st.PruneTradesBefore(cutoff)
		if err != nil {
			log.Error("Trade pruning failed", zap.Error(err))
			failed = true
		} else if removed > 0 {
			log.Info("Pruned old trade records", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
		}
	}

	if failed {
		os.Exit(1)
	}
}
