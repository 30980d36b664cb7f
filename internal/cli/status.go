package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/dexwatch/internal/indexing/health"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a running instance",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "instance base url (default http://localhost:<server.port>)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	addr := statusAddr
	if addr == "" {
		cfg := loadConfig()
		addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	report, err := fetchHealth(cmd.Context(), addr)
	if err != nil {
		slog.Error("Failed to query instance", "addr", addr, "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tMONITORING\tWALLETS\tEPOCH\tLATENCY")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dms\n",
		report.Status, report.Monitoring, report.Subscriptions, report.Epoch, report.RPCLatencyMs)
	_ = w.Flush()

	if len(report.Providers) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "PROVIDER\tAVAILABLE\tLATENCY\tERROR RATE")
		for _, p := range report.Providers {
			_, _ = fmt.Fprintf(w, "%s\t%t\t%dms\t%.2f\n", p.Name, p.Available, p.LatencyMs, p.ErrorRate)
		}
		_ = w.Flush()
	}

	if report.RPCError != "" {
		fmt.Printf("\nRPC error: %s\n", report.RPCError)
	}
	if report.Status == health.StatusCritical {
		os.Exit(2)
	}
}

func fetchHealth(ctx context.Context, addr string) (*health.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()

	// 503 still carries a report
	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode health (http %d): %w", resp.StatusCode, err)
	}
	return &report, nil
}
