package main

import (
	"gitlab-portal/internal/db"
	"gitlab-portal/internal/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the SQL schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			logger.Error("invalid configuration", map[string]any{
				"error": err.Error(),
			})
			return err
		}

		gdb, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(gdb) }()

		if err := db.Migrate(cmd.Context(), gdb); err != nil {
			return err
		}

		logger.Info("migrations applied", map[string]any{
			"driver": cfg.Database.Driver,
		})
		return nil
	},
}
