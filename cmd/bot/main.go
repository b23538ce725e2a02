package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"tradeogre-grid-bot-go/internal/config"
	"tradeogre-grid-bot-go/internal/controller"
	"tradeogre-grid-bot-go/internal/exchange"
	"tradeogre-grid-bot-go/internal/ledger"
	"tradeogre-grid-bot-go/internal/logger"
	"tradeogre-grid-bot-go/internal/models"
	"tradeogre-grid-bot-go/internal/persistence"
	"tradeogre-grid-bot-go/internal/ratelimit"
	"tradeogre-grid-bot-go/internal/reporter"
	"tradeogre-grid-bot-go/internal/safety"
)

// dryRunFillProbability is the per-cycle chance a simulated order
// fills.
const dryRunFillProbability = 0.01

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	// A default logger so config loading itself can be logged; replaced
	// once the file is read.
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err == nil {
		logger.S().Info("loaded environment from .env")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Errorf("failed to load config: %v", err)
		return 1
	}
	if keyFile := os.Getenv("TRADEOGRE_KEY_FILE"); keyFile != "" {
		cfg.APIKeyFile = keyFile
	}
	if err := config.Validate(cfg); err != nil {
		logger.S().Errorf("invalid config: %v", err)
		return 1
	}

	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()
	log := logger.S()

	runID := uuid.NewString()
	log.Infof("run %s, market %s", runID, cfg.Market)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Infof("received %s, shutting down", sig)
		cancel()
	}()

	limiter := ratelimit.New(cfg.CallsPerMinute, log)

	var (
		ex     exchange.Exchange
		oracle ledger.FillOracle
	)
	if cfg.DryRun {
		ex, oracle, err = buildPaperExchange(ctx, cfg, limiter)
	} else {
		ex, oracle, err = buildLiveExchange(ctx, cfg, limiter)
	}
	if err != nil {
		log.Errorf("failed to set up exchange: %v", err)
		return 1
	}

	// One snapshot per market, so a restart on the same market resumes
	// its ladder.
	botState := models.NewBotState(cfg.Market)

	var repo persistence.StateRepository
	if cfg.DBPath != "" {
		repo, err = persistence.NewBadgerRepository(cfg.DBPath)
		if err != nil {
			log.Errorf("failed to open state database: %v", err)
			return 1
		}
		defer repo.Close()
	}

	bot := controller.New(
		cfg,
		botState,
		ex,
		ledger.New(cfg, botState, ex, oracle, log),
		safety.New(cfg, botState, ex, log),
		repo,
		reporter.New(cfg, botState, log),
		log,
	)

	if err := bot.Run(ctx); err != nil {
		log.Errorf("bot failed: %v", err)
		return 1
	}
	if botState.EmergencyStop {
		return 2
	}
	return 0
}

// buildLiveExchange authenticates against TradeOgre and reconciles
// fills from its open-order list.
func buildLiveExchange(ctx context.Context, cfg *models.Config, limiter *ratelimit.Limiter) (exchange.Exchange, ledger.FillOracle, error) {
	key, secret, err := config.LoadAPIKey(cfg.APIKeyFile)
	if err != nil {
		return nil, nil, err
	}

	client := exchange.NewTradeOgre(
		ctx, key, secret, cfg.APIBaseURL,
		cfg.RetryAttempts, time.Duration(cfg.RetryInitialDelayMs)*time.Millisecond,
		limiter, logger.S(),
	)
	return client, ledger.NewExchangeReconciliation(client, cfg.Market), nil
}

// buildPaperExchange seeds an in-memory exchange from the real public
// ticker, with just enough base currency to cover the ladder, and
// pairs it with the simulated fill oracle.
func buildPaperExchange(ctx context.Context, cfg *models.Config, limiter *ratelimit.Limiter) (exchange.Exchange, ledger.FillOracle, error) {
	// Public endpoints need no credentials; dry runs still price the
	// ladder off the live market.
	probe := exchange.NewTradeOgre(
		ctx, "", "", cfg.APIBaseURL,
		cfg.RetryAttempts, time.Duration(cfg.RetryInitialDelayMs)*time.Millisecond,
		limiter, logger.S(),
	)
	ticker, err := probe.GetTicker(cfg.Market)
	if err != nil {
		return nil, nil, err
	}

	base := strings.SplitN(cfg.Market, "-", 2)[0]
	paper := exchange.NewPaper(*ticker, map[string]models.Balance{
		base: {Available: cfg.TotalQuantity},
	}, logger.S())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return paper, ledger.NewSimulatedFill(dryRunFillProbability, rng, paper.Fill), nil
}
