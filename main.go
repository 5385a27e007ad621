package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"crypto-gap-scanner/config"
	"crypto-gap-scanner/internal/api"
	"crypto-gap-scanner/internal/binance"
	"crypto-gap-scanner/internal/cache"
	"crypto-gap-scanner/internal/logging"
	"crypto-gap-scanner/internal/report"
	"crypto-gap-scanner/internal/scanner"
	"crypto-gap-scanner/internal/strategy"
)

func main() {
	genConfig := flag.String("generate-config", "", "write a sample config file to the given path and exit")
	runOnce := flag.Bool("once", false, "run a single scan cycle and exit")
	flag.Parse()

	if *genConfig != "" {
		if err := config.GenerateSampleConfig(*genConfig); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sample config written to %s\n", *genConfig)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LoggingConfig.Level, cfg.LoggingConfig.Pretty)
	log.Info().Int("instruments", len(cfg.Instruments)).Msg("gap scanner starting")

	client := binance.NewClient(cfg.BinanceConfig.BaseURL, cfg.BinanceConfig.Timeout())

	var market strategy.MarketDataProvider = client
	var klineCache *cache.KlineCache
	if cfg.RedisConfig.Enabled {
		klineCache, err = cache.NewKlineCache(cfg.RedisConfig)
		if err != nil {
			log.Warn().Err(err).Msg("kline cache unavailable, fetching directly")
		} else {
			market = cache.NewCachedMarketData(client, klineCache)
		}
	}

	var derivatives strategy.DerivativesProvider
	if cfg.ScannerConfig.UseDerivatives {
		derivatives = binance.NewFuturesClient(cfg.BinanceConfig.FuturesBaseURL, cfg.BinanceConfig.Timeout())
	}

	var liquidations strategy.LiquidationSource
	var tracker *binance.LiquidationTracker
	if cfg.ScannerConfig.UseLiquidations {
		tracker = binance.NewLiquidationTracker(cfg.BinanceConfig.FuturesWSURL, cfg.LiquidationConfig.Retention())
		tracker.Start()
		liquidations = tracker
	}

	analyzer := strategy.NewAnalyzer(market, derivatives, liquidations, analyzerConfig(cfg))

	instruments := make([]scanner.Instrument, len(cfg.Instruments))
	for i, inst := range cfg.Instruments {
		instruments[i] = scanner.Instrument{Name: inst.Name, Symbol: inst.Symbol}
	}

	sc := scanner.NewScanner(analyzer, market, scanner.Config{
		Instruments:  instruments,
		ScanInterval: cfg.ScannerConfig.ScanInterval(),
		WorkerCount:  cfg.ScannerConfig.WorkerCount,
		OnResult: func(res *scanner.ScanResult) {
			fmt.Println(report.FormatScanResult(res))
		},
	})

	if *runOnce || cfg.ScannerConfig.RunOnce {
		sc.Scan()
		shutdown(nil, nil, tracker, klineCache)
		return
	}

	sc.Start()

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.ServerConfig{
			Port:           cfg.ServerConfig.Port,
			Host:           cfg.ServerConfig.Host,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
			ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		}, sc)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("http server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	shutdown(sc, server, tracker, klineCache)
}

// analyzerConfig maps the loaded configuration onto the analyzer defaults.
func analyzerConfig(cfg *config.Config) strategy.AnalyzerConfig {
	ac := strategy.DefaultAnalyzerConfig()
	ac.GapThresholdPct = cfg.AnalysisConfig.GapThresholdPct
	ac.GapLookbackDays = cfg.AnalysisConfig.GapLookbackDays
	ac.InventoryLookback = cfg.AnalysisConfig.HistoricLookbackDays
	ac.ConfluenceTolerance = cfg.LiquidationConfig.GapTolerancePct
	ac.ClusterTolerance = cfg.LiquidationConfig.ClusterTolerancePct
	if !cfg.AnalysisConfig.PenalizeContrary {
		ac.Scoring.ContraryPenalty = 0
		ac.Scoring.RequireIndicatorSupport = false
	}
	return ac
}

func shutdown(sc *scanner.Scanner, server *api.Server, tracker *binance.LiquidationTracker, klineCache *cache.KlineCache) {
	if sc != nil {
		sc.Stop()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown failed")
		}
	}
	if tracker != nil {
		tracker.Stop()
	}
	if klineCache != nil {
		if err := klineCache.Close(); err != nil {
			log.Warn().Err(err).Msg("cache close failed")
		}
	}
}
