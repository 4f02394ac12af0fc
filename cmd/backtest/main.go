package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/feeds"
	"github.com/Amenzel91/catalyst-bot-sub003/internal/config"
	"github.com/Amenzel91/catalyst-bot-sub003/storage"
)

const usage = `usage: backtest <command> [flags]

commands:
  run           replay alerts through one strategy
  sweep         Monte Carlo sweep of one parameter
  optimize      search a multi-parameter grid
  validate      compare a parameter change against the current value
  walkforward   rolling train/test out-of-sample check
  baseline      rank the strategy against random trading
  history       list recorded runs and validations`

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Println(usage)
		return
	}

	// ═══════════════════════════════════════════════════════════════════════════════
	// INITIALIZE COMPONENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	a := &app{
		cfg:    cfg,
		alerts: feeds.NewJSONLAlertSource(cfg.AlertsPath),
		prices: feeds.NewCSVPriceSource(cfg.BarsDir),
	}

	if cfg.PersistRuns {
		db, err := storage.New(cfg.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Msg("Database connection failed, continuing without persistence")
		} else {
			a.db = db
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ═══════════════════════════════════════════════════════════════════════════════
	// DISPATCH
	// ═══════════════════════════════════════════════════════════════════════════════

	runErr := a.dispatch(ctx, cmd, args)
	stop()
	if a.db != nil {
		a.db.Close()
	}

	if errors.Is(runErr, errUnknownCommand) {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if runErr != nil {
		log.Error().Err(runErr).Str("command", cmd).Msg("❌ Command failed")
		os.Exit(1)
	}
	log.Info().Msg("👋 Done")
}

var errUnknownCommand = errors.New("unknown command")

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "run":
		return a.run(ctx, args)
	case "sweep":
		return a.sweep(ctx, args)
	case "optimize":
		return a.optimize(ctx, args)
	case "validate":
		return a.validate(ctx, args)
	case "walkforward":
		return a.walkForward(ctx, args)
	case "baseline":
		return a.baseline(ctx, args)
	case "history":
		return a.history(ctx, args)
	default:
		return errUnknownCommand
	}
}
