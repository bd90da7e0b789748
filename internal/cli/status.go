package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/tradeup/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication volume and session presence",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	stores, err := control.OpenStores(control.FromAppConfig(cfg))
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	ctx := context.Background()
	stats, err := stores.Ledger.Stats(ctx)
	if err != nil {
		slog.Error("Failed to read volume ledger", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "WINDOW\tKEY\tCOUNT\tLIMIT")
	_, _ = fmt.Fprintf(w, "daily\t%s\t%d\t%d\n", stats.Daily.Key, stats.Daily.Count, stats.Daily.Limit)
	_, _ = fmt.Fprintf(w, "monthly\t%s\t%d\t%d\n", stats.Monthly.Key, stats.Monthly.Count, stats.Monthly.Limit)
	_ = w.Flush()

	fmt.Printf("\nVolume:  %s\n", stores.Location())
	fmt.Printf("Session: %s (saved: %t)\n", stores.Sessions.Path(), stores.Sessions.Has(ctx))
	if stats.Exceeded() {
		fmt.Println("Login ceiling reached, new logins are blocked until the window rotates.")
	}
}
