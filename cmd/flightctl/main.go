package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flight-alert-service/internal/app"
	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/infrastructure/config"
	"flight-alert-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "flightctl",
		Short:        "Flight fare tracker admin tool",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(checkDestCmd())
	rootCmd.AddCommand(internationalCmd())
	rootCmd.AddCommand(dealsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(initDBCmd())
	rootCmd.AddCommand(testDBCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads process configuration and a logger for one command
func setup() (*config.Config, *logger.ZapLogger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewLogger(cfg.LogLevel), nil
}

// withApp builds the full application context and closes it afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.AppContext) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	return fn(ctx, a)
}

func decimalFlag(cmd *cobra.Command, name string) (*decimal.Decimal, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil || raw == "" {
		return nil, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return &value, nil
}

func printReport(w io.Writer, report *entity.RunReport) {
	if report == nil {
		return
	}
	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "  Pairs:       %d (%d without data)\n", report.PairsAttempted, report.PairsWithoutData)
	fmt.Fprintf(w, "  Candidates:  %d\n", report.Candidates)
	fmt.Fprintf(w, "  New:         %d\n", report.New)
	fmt.Fprintf(w, "  Changed:     %d\n", report.Changed)
	fmt.Fprintf(w, "  Unchanged:   %d\n", report.Unchanged)
	if report.StoreErrors > 0 {
		fmt.Fprintf(w, "  Store errors: %d\n", report.StoreErrors)
	}
	fmt.Fprintf(w, "  Alerts:      %d (sent: %t)\n", report.AlertsQueued, report.NotificationSent)
	fmt.Fprintf(w, "  Duration:    %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
