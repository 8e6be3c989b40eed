package main

import (
	"fmt"

	"flight-alert-service/internal/app"
	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/infrastructure/persistence"
	"flight-alert-service/internal/interface/repository"

	"github.com/spf13/cobra"
)

func initDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the price tables and reseed the location table",
		Long: `Migrates the current price, price history and location tables, then
replaces every location row. With --file the locations come from a JSON
object of {"CODE": "name"} pairs, all marked domestic. Otherwise a built-in
sample of 15 domestic and 5 international codes is loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			var locations []*entity.Location
			if file != "" {
				loaded, err := app.LoadLocationsFile(file)
				if err != nil {
					return err
				}
				locations = loaded
			} else {
				locations = app.SampleLocations()
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			db, err := app.OpenDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer persistence.Close(db)

			if err := repository.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}
			if err := repository.NewGormLocationRepository(db).ReplaceAll(ctx, locations); err != nil {
				return err
			}

			log.Info("Database initialized", "locations", len(locations), "source", sourceName(file))
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized with %d locations\n", len(locations))
			return nil
		},
	}

	cmd.Flags().String("file", "", "JSON file of IATA codes to import")

	return cmd
}

func sourceName(file string) string {
	if file == "" {
		return "sample"
	}
	return file
}

func testDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-db",
		Short: "Connect to the database and list its tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			db, err := app.OpenDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer persistence.Close(db)

			tables, err := persistence.ListTables(ctx, db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Database connection OK")
			if len(tables) == 0 {
				fmt.Fprintln(out, "No tables found")
				return nil
			}
			fmt.Fprintln(out, "Tables:")
			for _, table := range tables {
				fmt.Fprintf(out, "  - %s\n", table)
			}
			return nil
		},
	}
}
