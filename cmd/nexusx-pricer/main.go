package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/force23airr/NexusX-sub001/infra/breakers"
	"github.com/force23airr/NexusX-sub001/internal/config"
	"github.com/force23airr/NexusX-sub001/internal/metrics"
	"github.com/force23airr/NexusX-sub001/internal/persistence/postgres"
	"github.com/force23airr/NexusX-sub001/internal/pricing/demand"
	"github.com/force23airr/NexusX-sub001/internal/pricing/engine"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
	"github.com/force23airr/NexusX-sub001/internal/pricing/updater"
	"github.com/force23airr/NexusX-sub001/internal/pubsub"
)

const (
	appName = "nexusx-pricer"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "NexusX dynamic auction pricing core",
		Version: version,
		Long: `nexusx-pricer runs the dynamic auction pricing subsystem for the
marketplace: the Demand Tracker, Quality Scorer, and Pricing Engine,
tied together by the Price Updater into a periodic bounded-concurrency
cycle that publishes changed prices to subscribers.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the Price Updater loop",
		Long:  "Connects to Postgres and Redis and runs the pricing cycle on the configured interval until interrupted.",
		RunE:  runPricer,
	}
	runCmd.Flags().String("config", "", "Path to a YAML overrides file merged onto the active phase preset")
	runCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics on")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a single price computation without touching the database",
		Long:  "Computes one price from floor, demand score, competitor count, and quality score, useful for sanity-checking a phase preset.",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("phase", config.DefaultPreset, "Pricing phase preset (launch|growth|scale)")
	simulateCmd.Flags().Float64("floor", 1.0, "Floor price in USDC")
	simulateCmd.Flags().Float64("demand-score", 50, "Demand score in [0,100]")
	simulateCmd.Flags().Int("competitors", 0, "Number of competing listings in the category")
	simulateCmd.Flags().Float64("quality-score", 70, "Composite quality score in [0,100]")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect pricing configuration",
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved pricing configuration",
		RunE:  runConfigShow,
	}
	configShowCmd.Flags().String("phase", config.DefaultPreset, "Pricing phase preset (launch|growth|scale)")
	configShowCmd.Flags().String("config", "", "Path to a YAML overrides file merged onto the phase preset")
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(runCmd, simulateCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("nexusx-pricer exited with error")
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	phase, _ := cmd.Flags().GetString("phase")
	overridesPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadFromFile(phase, overridesPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("phase: %s\n", phase)
	fmt.Printf("update_interval: %s\n", cfg.UpdateInterval())
	fmt.Printf("demand_window: %s\n", cfg.DemandWindow())
	fmt.Printf("max_demand_multiplier: %.2f\n", cfg.MaxDemandMultiplier)
	fmt.Printf("max_scarcity_multiplier: %.2f\n", cfg.MaxScarcityMultiplier)
	fmt.Printf("max_quality_multiplier: %.2f\n", cfg.MaxQualityMultiplier)
	fmt.Printf("max_momentum_multiplier: %.2f\n", cfg.MaxMomentumMultiplier)
	fmt.Printf("smoothing_factor: %.2f\n", cfg.SmoothingFactor)
	fmt.Printf("max_price_change_percent: %.2f\n", cfg.MaxPriceChangePercent)
	fmt.Printf("platform_fee_rate: %.2f\n", cfg.PlatformFeeRate)
	fmt.Printf("max_concurrent_fetches: %d\n", cfg.MaxConcurrentFetches)
	fmt.Printf("cycle_deadline: %s\n", cfg.CycleDeadline())
	return nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	phase, _ := cmd.Flags().GetString("phase")
	floor, _ := cmd.Flags().GetFloat64("floor")
	demandScore, _ := cmd.Flags().GetFloat64("demand-score")
	competitors, _ := cmd.Flags().GetInt("competitors")
	qualityScore, _ := cmd.Flags().GetFloat64("quality-score")

	cfg, err := config.Preset(phase)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, engine.RealClock{})
	price, multipliers := eng.SimulatePrice(floor, demandScore, competitors, qualityScore)

	fmt.Printf("simulated price: %.6f USDC\n", price)
	fmt.Printf("demand:    %.4fx\n", multipliers.Demand)
	fmt.Printf("scarcity:  %.4fx\n", multipliers.Scarcity)
	fmt.Printf("quality:   %.4fx\n", multipliers.Quality)
	fmt.Printf("momentum:  %.4fx\n", multipliers.Momentum)
	fmt.Printf("temporal:  %.4fx\n", multipliers.Temporal)
	return nil
}

func runPricer(cmd *cobra.Command, _ []string) error {
	overridesPath, _ := cmd.Flags().GetString("config")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	env := config.LoadEnvInputs()
	cfg, err := config.LoadFromFile(env.Phase, overridesPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info().Str("phase", env.Phase).Dur("update_interval", cfg.UpdateInterval()).Msg("starting nexusx-pricer")

	dbCfg := postgres.DefaultConfig()
	dbCfg.DSN = env.DatabaseURL
	db, repos, err := postgres.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(env.PubSubURL)
	if err != nil {
		return fmt.Errorf("failed to parse pubsub URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	publisher := pubsub.NewPublisher(redisClient, 100, log.Logger)
	registry := metrics.NewRegistry()
	kindWeights := types.DefaultKindWeights().Merge(cfg.KindWeightOverrides)
	tracker := demand.New(cfg.DemandWindowMs, kindWeights, nil)
	eng := engine.New(cfg, engine.RealClock{})

	w := updater.New(
		func() config.PricingConfig { return cfg },
		eng,
		tracker,
		updater.Repos{
			Listings:       repos.Listings,
			Snapshots:      repos.Snapshots,
			AuctionResults: repos.AuctionResults,
			QualityRollups: repos.QualityRollups,
			Supply:         repos.Supply,
		},
		publisher,
		registry,
		breakers.New("postgres", registry.RecordBreakerTrip),
		breakers.New("pubsub", registry.RecordBreakerTrip),
		log.Logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serveMetrics(ctx, metricsAddr, registry)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("price updater stopped: %w", err)
		}
	}

	log.Info().Msg("nexusx-pricer shutdown complete")
	return nil
}

// serveMetrics runs the Prometheus /metrics endpoint until ctx is
// cancelled, logging but not failing the process if the listener dies.
func serveMetrics(ctx context.Context, addr string, registry *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving /metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server error")
	}
}
