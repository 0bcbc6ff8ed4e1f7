package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stratapool/config"
	"stratapool/native/common"
	"stratapool/native/oracle"
	"stratapool/native/router"
	"stratapool/observability/logging"
	"stratapool/sim"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	scenarioPath := flag.String("scenario", "", "path to the YAML scenario file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	logger := logging.Setup(cfg.Service, cfg.Environment, logging.Options{FilePath: cfg.LogFile})

	scenario := sim.DefaultScenario()
	if *scenarioPath != "" {
		loaded, err := sim.LoadScenario(*scenarioPath)
		if err != nil {
			log.Fatalf("load scenario: %v", err)
		}
		scenario = loaded
	}

	source := oracle.NewManual(map[string]*big.Rat{
		cfg.VADenom: scenario.InitialPriceAmount(),
		cfg.SADenom: common.One(),
	})
	engine, err := router.New(cfg.EngineConfig(), source)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	engine.SetLogger(logger)

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.ListenAddress, Handler: mux}
	go func() {
		logger.Info("serving metrics", "addr", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := sim.NewDriver(engine, source, scenario, logger)
	if err != nil {
		log.Fatalf("build driver: %v", err)
	}
	if err := driver.Run(ctx); err != nil {
		logger.Error("simulation failed", "error", err)
	} else {
		report(logger, driver)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	os.Exit(0)
}

func report(logger *slog.Logger, driver *sim.Driver) {
	stats := driver.Stats()
	if len(stats) == 0 {
		return
	}
	final := stats[len(stats)-1]
	logger.Info("simulation complete",
		"rounds", final.Round,
		"stable_balance", common.FormatRat(final.StableBalance),
		"va_value_usd", common.FormatRat(final.VAValueUSD),
		"fee_balance", common.FormatRat(final.FeeBalance),
		"total_usd", common.FormatRat(final.TotalUSD),
		"emergency_triggers", final.Triggered,
		"refills", final.Rebalanced,
	)
	for _, provider := range driver.Providers() {
		if provider.StakedUSD().Sign() == 0 {
			continue
		}
		logger.Info("provider summary",
			"provider", provider.Name(),
			"staked_usd", common.FormatRat(provider.StakedUSD()),
			"redeemed_usd", common.FormatRat(provider.RedeemedUSD()),
			"yield", common.FormatRat(provider.Yield()),
		)
	}
}
