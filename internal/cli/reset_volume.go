package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/tradeup/internal/control"
)

var resetVolumeCmd = &cobra.Command{
	Use:   "reset-volume",
	Short: "Zero the daily and monthly login counters",
	Args:  cobra.NoArgs,
	Run:   runResetVolume,
}

func init() {
	rootCmd.AddCommand(resetVolumeCmd)
}

func runResetVolume(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	stores, err := control.OpenStores(control.FromAppConfig(cfg))
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	if err := stores.Ledger.Reset(context.Background()); err != nil {
		slog.Error("Failed to reset volume", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset login volume at %s\n", stores.Location())
}
