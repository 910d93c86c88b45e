package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/seed"
	"github.com/example/takeover-week/internal/slots"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var file string

	c := &cobra.Command{
		Use:   "seed",
		Short: "Load the week's slots and crawls (existing rows are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			data, err := seed.Week()
			if file != "" {
				b, rerr := os.ReadFile(file)
				if rerr != nil {
					return rerr
				}
				data, err = seed.Parse(b)
			}
			if err != nil {
				return err
			}

			ctx := context.Background()
			d, err := openDB(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer d.Close()

			st, err := seed.Apply(ctx, data, slots.NewRepo(d), crawls.NewRepo(d), log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slots: %d created, %d existing; crawls: %d created, %d existing\n",
				st.SlotsCreated, st.SlotsSkipped, st.CrawlsCreated, st.CrawlsSkipped)
			return nil
		},
	}
	c.Flags().StringVar(&file, "file", "", "JSON schedule to load instead of the built-in week")
	return c
}
