package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/tradeup/internal/coordinator"
)

var assetIDs []string

var tradeUpCmd = &cobra.Command{
	Use:   "tradeup --assets id1,id2,...",
	Short: "Execute a single trade-up from ten asset ids",
	Args:  cobra.NoArgs,
	Run:   runTradeUp,
}

func init() {
	tradeUpCmd.Flags().StringSliceVar(&assetIDs, "assets", nil, "comma separated list of exactly ten asset ids")
	_ = tradeUpCmd.MarkFlagRequired("assets")
	rootCmd.AddCommand(tradeUpCmd)
}

func runTradeUp(cmd *cobra.Command, args []string) {
	// Reject malformed input before logging in
	if err := coordinator.ValidateTradeUpInput(assetIDs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()

	app := startBot(ctx, cfg)
	defer stopBot(app)

	result, err := app.TradeUp(ctx, assetIDs)
	if err != nil {
		if errors.Is(err, coordinator.ErrTradeUpTimeout) {
			slog.Error("Trade-up timed out; check the inventory before retrying, inputs may have been consumed",
				"assets", strings.Join(assetIDs, ","))
		} else {
			slog.Error("Trade-up failed", "error", err)
		}
		stopBot(app)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}
