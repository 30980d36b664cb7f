package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/core/wallet"
	"github.com/vietddude/dexwatch/internal/infra/storage/jsonfile"
)

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Manage the wallet file of a stopped instance",
}

var walletsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored wallets",
	Args:  cobra.NoArgs,
	Run:   runWalletsList,
}

var walletsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write stored wallets as JSON to file or stdout",
	Args:  cobra.MaximumNArgs(1),
	Run:   runWalletsExport,
}

var walletsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace stored wallets with a JSON backup",
	Args:  cobra.ExactArgs(1),
	Run:   runWalletsImport,
}

func init() {
	walletsCmd.AddCommand(walletsListCmd, walletsExportCmd, walletsImportCmd)
	rootCmd.AddCommand(walletsCmd)
}

// offlineMonitor satisfies wallet.Monitor when no subscriptions run.
type offlineMonitor struct{}

func (offlineMonitor) Start(context.Context, domain.Wallet, int64) error { return nil }
func (offlineMonitor) Stop(context.Context, domain.Wallet, int64) bool   { return false }
func (offlineMonitor) Remove(context.Context, string) bool               { return false }
func (offlineMonitor) StopAll(context.Context) int                       { return 0 }
func (offlineMonitor) IsActive(string) bool                              { return false }
func (offlineMonitor) RestartIfActive(context.Context, domain.Wallet, int64) (bool, error) {
	return false, nil
}

func openWallets() (*wallet.Service, func()) {
	cfg := loadConfig()
	store, err := jsonfile.Open(cfg.Storage.DataDir)
	if err != nil {
		slog.Error("Failed to open wallet storage", "error", err)
		os.Exit(1)
	}
	return wallet.NewService(store, offlineMonitor{}, nil), func() {
		_ = store.Close()
	}
}

func runWalletsList(cmd *cobra.Command, args []string) {
	svc, closeFn := openWallets()
	defer closeFn()

	wallets, err := svc.List(context.Background())
	if err != nil {
		slog.Error("Failed to list wallets", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tLABEL\tADDRESS\tTOKEN\tMIN\tMAX\tACTIVE")
	for _, wl := range wallets {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%t\n",
			wl.ID, wl.Label, wl.Address, wl.Token, wl.MinBuy, wl.MaxBuy, wl.Active)
	}
	_ = w.Flush()
}

func runWalletsExport(cmd *cobra.Command, args []string) {
	svc, closeFn := openWallets()
	defer closeFn()

	data, err := svc.Export(context.Background())
	if err != nil {
		slog.Error("Failed to export wallets", "error", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		slog.Error("Failed to write export", "file", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("Exported wallets to %s\n", args[0])
}

func runWalletsImport(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", args[0], err)
		os.Exit(1)
	}
	wallets, err := wallet.ParseWallets(data)
	if err != nil {
		fmt.Printf("Invalid wallet file: %v\n", err)
		os.Exit(1)
	}

	svc, closeFn := openWallets()
	defer closeFn()

	if _, err := svc.Import(context.Background(), 0, wallets); err != nil {
		slog.Error("Import rejected", "error", err)
		closeFn()
		os.Exit(1)
	}
	fmt.Printf("Imported %d wallet(s)\n", len(wallets))
}
