package main

import (
	"context"
	"fmt"
	"strings"

	"flight-alert-service/internal/app"
	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/pkg/utils"
	"flight-alert-service/templates"

	"github.com/spf13/cobra"
)

func dealsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deals",
		Short: "Show the cheapest tracked fares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			origins, _ := cmd.Flags().GetStringSlice("from")
			limit, _ := cmd.Flags().GetInt("limit")
			maxPrice, err := decimalFlag(cmd, "max-price")
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app.AppContext) error {
				deals, err := a.Orchestrator.BestDeals(ctx, origins, maxPrice, limit)
				if err != nil {
					return err
				}
				if len(deals) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No fares below the price limit")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), templates.FormatDealsTable(deals, a.Orchestrator.LocationNames(ctx)))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceP("from", "f", nil, "Origins, defaults to placeFrom")
	cmd.Flags().String("max-price", "", "Price limit, defaults to targetPrice")
	cmd.Flags().IntP("limit", "n", 5, "Maximum results per origin")

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [origin] [destination] [departure] [return]",
		Short: "Show the price transitions of one tracked fare",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			oneWay, _ := cmd.Flags().GetBool("one-way")

			dep, err := utils.ParseDate(args[2])
			if err != nil {
				return err
			}
			ret, err := utils.ParseDate(args[3])
			if err != nil {
				return err
			}

			key := entity.RouteKey{
				Origin:        strings.ToUpper(args[0]),
				Destination:   strings.ToUpper(args[1]),
				DepartureDate: dep,
				ReturnDate:    ret,
				TripType:      entity.TripTypeFromFlag(!oneWay),
			}

			return withApp(cmd, func(ctx context.Context, a *app.AppContext) error {
				out := cmd.OutOrStdout()

				current, err := a.Prices.Get(ctx, key)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				fmt.Fprintf(out, "%s\n  current: %s %s (first seen %s, last checked %s)\n",
					key,
					current.Price.StringFixed(2), current.Currency,
					current.FirstSeen.Format(utils.TIMESTAMP_LAYOUT),
					current.LastChecked.Format(utils.TIMESTAMP_LAYOUT))

				changes, err := a.Prices.History(ctx, key)
				if err != nil {
					return err
				}
				if len(changes) == 0 {
					fmt.Fprintln(out, "  no price changes recorded")
					return nil
				}
				for _, change := range changes {
					fmt.Fprintf(out, "  %s  %s -> %s\n",
						change.ChangedAt.Format(utils.TIMESTAMP_LAYOUT),
						change.OldPrice.StringFixed(2),
						change.NewPrice.StringFixed(2))
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("one-way", false, "Look up the one-way record")

	return cmd
}
