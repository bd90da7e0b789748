package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/tradeup/internal/control"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved session so the next start performs a full login",
	Args:  cobra.NoArgs,
	Run:   runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	stores, err := control.OpenStores(control.FromAppConfig(cfg))
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	if err := stores.Sessions.Clear(context.Background()); err != nil {
		slog.Error("Failed to clear session", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Session cleared at %s\n", stores.Sessions.Path())
}
