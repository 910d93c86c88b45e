package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			d, err := openDB(context.Background(), cfg, log, true)
			if err != nil {
				return err
			}
			d.Close()
			return nil
		},
	}
}
