package main

import (
	"fmt"

	"github.com/spf13/cobra"
	optionsmysql "github.com/wyfcoding/optionescrow/internal/options/infrastructure/persistence/mysql"
	"github.com/wyfcoding/optionescrow/pkg/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the MySQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.Database.Driver != "mysql" {
			return fmt.Errorf("migrate requires database.driver = mysql, got %q", cfg.Database.Driver)
		}
		gdb, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		if err := optionsmysql.Migrate(cmd.Context(), gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated")
		return nil
	},
}
