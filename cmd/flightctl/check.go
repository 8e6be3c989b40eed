package main

import (
	"context"
	"errors"
	"fmt"

	"flight-alert-service/internal/app"
	"flight-alert-service/pkg/utils"
	"flight-alert-service/templates"

	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one price check pass over every configured route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.AppContext) error {
				report, err := a.Orchestrator.RunPass(ctx)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [origin] [destination]",
		Short: "Check one route over the lookahead window, or on explicit dates",
		Long: `Without --dep the route is checked over the domestic lookahead window and
qualifying alerts are printed, not pushed.

With --dep (and optionally --ret) only that date pair is checked. The fare is
recorded and pushed when it is below --max-price (targetPrice by default).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			depRaw, _ := cmd.Flags().GetString("dep")
			retRaw, _ := cmd.Flags().GetString("ret")
			maxPrice, err := decimalFlag(cmd, "max-price")
			if err != nil {
				return err
			}
			if depRaw == "" && (retRaw != "" || maxPrice != nil) {
				return errors.New("--ret and --max-price require --dep")
			}

			return withApp(cmd, func(ctx context.Context, a *app.AppContext) error {
				out := cmd.OutOrStdout()

				if depRaw == "" {
					report, alerts, err := a.Orchestrator.CheckRoute(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					printReport(out, report)
					if len(alerts) == 0 {
						fmt.Fprintln(out, "No fares below target price")
						return nil
					}
					fmt.Fprint(out, "\n"+templates.FormatAlerts(alerts, a.Orchestrator.LocationNames(ctx)))
					return nil
				}

				dep, err := utils.ParseDate(depRaw)
				if err != nil {
					return err
				}
				ret := dep.AddDate(0, 0, a.Orchestrator.Settings().ReturnOffsetDays)
				if retRaw != "" {
					if ret, err = utils.ParseDate(retRaw); err != nil {
						return err
					}
				}

				report, err := a.Orchestrator.CheckRouteDates(ctx, args[0], args[1], dep, ret, maxPrice)
				printReport(out, report)
				return err
			})
		},
	}

	cmd.Flags().String("dep", "", "Departure date (YYYY-MM-DD or YYYYMMDD)")
	cmd.Flags().String("ret", "", "Return date, defaults to departure + 3 days")
	cmd.Flags().String("max-price", "", "Alert threshold, defaults to targetPrice")

	return cmd
}

func checkDestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-dest [destination]",
		Short: "Check every configured origin against one destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.AppContext) error {
				report, err := a.Orchestrator.CheckAllOrigins(ctx, args[0])
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func internationalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "international [origin] [destination]",
		Short: "Check one international route",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.AppContext) error {
				report, err := a.Orchestrator.CheckInternational(ctx, args[0], args[1])
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}
