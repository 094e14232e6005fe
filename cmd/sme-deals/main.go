package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/api"
	"github.com/Checker-Finance/sme-deals/internal/bse"
	"github.com/Checker-Finance/sme-deals/internal/config"
	"github.com/Checker-Finance/sme-deals/internal/dedupe"
	"github.com/Checker-Finance/sme-deals/internal/metrics"
	"github.com/Checker-Finance/sme-deals/internal/nse"
	"github.com/Checker-Finance/sme-deals/internal/publisher"
	"github.com/Checker-Finance/sme-deals/internal/rate"
	"github.com/Checker-Finance/sme-deals/internal/runner"
	"github.com/Checker-Finance/sme-deals/internal/source"
	"github.com/Checker-Finance/sme-deals/internal/telegram"
	"github.com/Checker-Finance/sme-deals/pkg/logger"
	"github.com/Checker-Finance/sme-deals/pkg/secrets"
	"github.com/Checker-Finance/sme-deals/pkg/utils"
)

const (
	membersTTL   = 6 * time.Hour
	minLockStale = 30 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [sme-deals]...")

	// --- Telegram credentials from AWS Secrets Manager (optional) ---
	if cfg.TelegramSecretName != "" {
		if err := resolveTelegramSecret(ctx, cfg); err != nil {
			logg.Errorw("failed to resolve telegram secret", "secret", cfg.TelegramSecretName, "error", err)
			return 2
		}
	}

	if err := cfg.Validate(); err != nil {
		logg.Errorw("invalid configuration", "error", err)
		return 2
	}
	logg.Infow("telegram configured",
		"token", utils.MaskBotToken("bot"+cfg.BotToken),
		"chat_id", cfg.ChatID)

	// --- Rate limiter shared across upstream clients ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 3,
		Burst:             5,
	})

	// --- Exchange sources ---
	nseClient := nse.NewClient(logger.L(), cfg.NSEBaseURL, cfg.NSEArchiveURL, rateMgr, cfg.HTTPTimeout)
	bseClient := bse.NewClient(logger.L(), cfg.BSEAPIURL, rateMgr, cfg.HTTPTimeout)
	sources := []source.Source{
		nse.NewAdapter(logger.L(), nseClient, membersTTL),
		bse.NewAdapter(logger.L(), bseClient, membersTTL),
	}

	// --- Seen-set store ---
	if cfg.SeenStore == "postgres" {
		logg.Info("connecting to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	}
	store, err := newSeenStore(ctx, cfg)
	if err != nil {
		logg.Errorw("failed to init seen store", "backend", cfg.SeenStore, "error", err)
		return 1
	}

	// --- Telegram notifier ---
	notifier := telegram.NewNotifier(logger.L(), cfg.TelegramAPIBase, cfg.BotToken, cfg.ChatID,
		cfg.MessageLimit, rateMgr, cfg.HTTPTimeout)

	// --- NATS run events (optional) ---
	var pub runner.EventPublisher
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Errorw("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			return 1
		}
		p, err := publisher.New(nc, logger.L(), cfg.ServiceName)
		if err != nil {
			logg.Errorw("failed to init publisher", "error", err)
			return 1
		}
		pub = p
	}

	// --- Metrics (optional) ---
	if cfg.MetricsAddr != "" {
		metrics.StartServer(cfg.MetricsAddr)
	}

	// --- Run lock: overlapping cron triggers exit cleanly ---
	lockStale := minLockStale
	if stale := 2 * cfg.RunInterval; stale > lockStale {
		lockStale = stale
	}
	lock, err := runner.AcquireLock(cfg.LockFile, lockStale)
	if err != nil {
		if errors.Is(err, runner.ErrLocked) {
			logg.Infow("another run is active, exiting", "lock", cfg.LockFile)
			return 0
		}
		logg.Errorw("failed to acquire run lock", "error", err)
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logg.Warnw("failed to release run lock", "error", err)
		}
	}()

	r := runner.New(logger.L(), sources, store, notifier, pub, runner.Options{
		LookbackDays:      cfg.LookbackDays,
		MaxRowsPerSection: cfg.MaxRowsPerSection,
		RetentionHorizon:  cfg.RetentionHorizon(),
	})
	coord := runner.NewCoordinator(r)

	// --- HTTP control API (daemon mode, optional) ---
	var app *fiber.App
	if cfg.APIPort > 0 {
		app = fiber.New(fiber.Config{DisableStartupMessage: true})
		api.RegisterRoutes(app, api.NewHandler(logger.L(), coord))
		go func() {
			logg.Infof("HTTP API listening on :%d", cfg.APIPort)
			if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
				logg.Errorw("fiber.listen_failed", "error", err)
			}
		}()
	}

	exitCode := 0
	if cfg.RunInterval > 0 {
		exitCode = runDaemon(ctx, logg, coord, cfg.RunInterval)
	} else {
		if _, err := coord.Run(ctx); err != nil {
			exitCode = 1
		}
	}

	logg.Info("shutting down [sme-deals]...")
	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logg.Warnw("fiber.shutdown_failed", "error", err)
		}
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	return exitCode
}

// runDaemon runs one pass immediately, then every interval until the context
// is cancelled. Persistence failures do not stop the loop; the last pass's
// outcome decides the exit code.
func runDaemon(ctx context.Context, logg *zap.SugaredLogger, coord *runner.Coordinator, interval time.Duration) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logg.Infow("daemon mode", "interval", interval)
	if _, err := coord.Run(ctx); err != nil {
		logg.Errorw("run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			if _, err := coord.Last(); err != nil {
				return 1
			}
			return 0
		case <-ticker.C:
			if _, err := coord.Run(ctx); err != nil && !errors.Is(err, runner.ErrLocked) {
				logg.Errorw("run failed", "error", err)
			}
		}
	}
}

// resolveTelegramSecret pulls BOT_TOKEN/CHAT_ID from AWS Secrets Manager,
// filling only the fields not already set from the environment.
func resolveTelegramSecret(ctx context.Context, cfg *config.Config) error {
	provider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		return err
	}
	values, err := provider.GetSecret(ctx, cfg.TelegramSecretName)
	if err != nil {
		return err
	}
	if cfg.BotToken == "" {
		cfg.BotToken = values["bot_token"]
	}
	if cfg.ChatID == "" {
		cfg.ChatID = values["chat_id"]
	}
	return nil
}

// newSeenStore picks the persistence backend for deal fingerprints.
func newSeenStore(ctx context.Context, cfg *config.Config) (dedupe.SeenStore, error) {
	switch cfg.SeenStore {
	case "redis":
		return dedupe.NewRedisStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RetentionHorizon())
	case "postgres":
		return dedupe.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.RetentionHorizon())
	case "file":
		return dedupe.NewFileStore(cfg.SeenFile), nil
	default:
		return nil, fmt.Errorf("unknown SEEN_STORE %q (want file, redis or postgres)", cfg.SeenStore)
	}
}
