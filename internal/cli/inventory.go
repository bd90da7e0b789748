package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List the account inventory through the game coordinator",
	Args:  cobra.NoArgs,
	Run:   runInventory,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
}

func runInventory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app := startBot(ctx, cfg)
	defer stopBot(app)

	items, err := app.Inventory(ctx)
	if err != nil {
		slog.Error("Failed to fetch inventory", "error", err)
		stopBot(app)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ASSET\tDEF\tPAINT\tSEED\tWEAR\tRARITY")
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\t%d\n",
			it.AssetID, it.DefIndex, it.PaintIndex, it.PaintSeed, it.PaintWear, it.Rarity)
	}
	_ = w.Flush()
	fmt.Printf("\n%d items\n", len(items))
}
