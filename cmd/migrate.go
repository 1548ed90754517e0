package cmd

import (
	"github.com/spf13/cobra"

	"github.com/smartgarden/gardend/internal/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(*cobra.Command, []string) error {
			settings, log, err := setup(opts)
			if err != nil {
				return err
			}
			manager, err := openDatabase(settings)
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()

			if err := manager.Initialize(); err != nil {
				return err
			}
			log.Info("schema migrated", logger.String("dialect", manager.Dialect()))
			return nil
		},
	}
}
