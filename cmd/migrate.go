package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockwise/internal/infrastructure/mysql"
)

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadBase(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		dir, _ := cmd.Flags().GetString("dir")
		if err := mysql.Migrate(cfg.Database, fmt.Sprintf("file://%s", dir), logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		return nil
	},
}
