package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/dexwatch/internal/infra/storage/postgres"
)

var pruneOlderThan time.Duration

var pruneCmd = &cobra.Command{
	Use:   "prune-alerts",
	Short: "Delete alert history older than a duration",
	Args:  cobra.NoArgs,
	Run:   runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "delete alerts detected before now minus this duration")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	if pruneOlderThan <= 0 {
		fmt.Println("--older-than must be positive")
		os.Exit(1)
	}

	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("No database configured (DATABASE_URL)")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database.Config)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	cutoff := time.Now().Add(-pruneOlderThan)
	n, err := postgres.NewAlertRepo(db).DeleteBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune alerts", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted %d alert(s) detected before %s\n", n, cutoff.Format(time.RFC3339))
}
