package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/tradeup/internal/control"
	"github.com/vietddude/tradeup/internal/core/config"
	"github.com/vietddude/tradeup/internal/core/steamerr"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "tradeup",
	Short: "Ban-aware trade-up bot",
	Long:  `tradeup authenticates against Steam, opens a game coordinator session and runs paced trade-ups within daily and monthly login ceilings.`,
	Run:   runBot,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env and the config file and installs the logger.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := config.ParseLevel(cfg.Logging.Level)
	if isDebug {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

// startBot creates and starts the bot, exiting the process on failure.
func startBot(ctx context.Context, cfg *config.AppConfig) *control.Bot {
	app, err := control.NewBot(ctx, control.FromAppConfig(cfg))
	if err != nil {
		slog.Error("Failed to initialize Bot", "error", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		if steamerr.IsCritical(err) {
			slog.Error("Critical account error, shutting down", "code", steamerr.CodeOf(err), "error", err)
		} else {
			slog.Error("Failed to start Bot", "error", err)
		}
		stopBot(app)
		os.Exit(1)
	}
	return app
}

func stopBot(app *control.Bot) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}

func runBot(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app := startBot(ctx, cfg)
	slog.Info("Bot started", "config", cfgPath, "run_id", app.RunID())

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		stopBot(app)
	case err := <-app.Critical():
		slog.Error("Critical account error, shutting down", "code", steamerr.CodeOf(err), "error", err)
		stopBot(app)
		os.Exit(1)
	}
}
