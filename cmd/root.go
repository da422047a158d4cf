package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Execute(ctx context.Context) {
	rootCmd := &cobra.Command{
		Use:   "stockwise",
		Short: "Inventory allocation and replenishment service",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Real environment variables win over .env.
			if err := godotenv.Load(); err != nil {
				log.Println("no .env file found, using the process environment")
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "optional YAML/JSON/TOML config file layered under the environment")

	ServeCmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
	ServeCmd.Flags().String("dir", "migrations", "directory containing the migration files")
	MigrateCmd.Flags().String("dir", "migrations", "directory containing the migration files")

	rootCmd.AddCommand(ServeCmd, MigrateCmd, SweepCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
