package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/takeover-week/internal/slots"
	"github.com/spf13/cobra"
)

func newSlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage bookable time slots",
	}
	cmd.AddCommand(newSlotAddCmd())
	cmd.AddCommand(newSlotListCmd())
	return cmd
}

func newSlotAddCmd() *cobra.Command {
	var (
		date     string
		at       string
		typ      string
		capacity int
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a slot; an existing slot with the same date, time and type is left alone",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			s := slots.Slot{
				Date:        strings.TrimSpace(date),
				Time:        strings.TrimSpace(at),
				SessionType: slots.SessionType(strings.ToLower(strings.TrimSpace(typ))),
				Capacity:    capacity,
			}
			if err := s.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			d, err := openDB(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer d.Close()

			out, created, err := slots.NewRepo(d).Create(ctx, s)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "slot %s %s already exists\n", s.Key(), s.SessionType)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created slot id=%s %s %s capacity=%d\n", out.ID, out.Key(), out.SessionType, out.Capacity)
			return nil
		},
	}

	c.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	c.Flags().StringVar(&at, "time", "", "start time HH:MM")
	c.Flags().StringVar(&typ, "type", string(slots.Daytime), "daytime or evening")
	c.Flags().IntVar(&capacity, "capacity", 1, "sessions this slot can take")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

func newSlotListCmd() *cobra.Command {
	var (
		available bool
		typ       string
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			st := slots.SessionType(strings.ToLower(strings.TrimSpace(typ)))
			if st != "" && !st.Valid() {
				return fmt.Errorf("invalid --type %q (want daytime or evening)", typ)
			}

			ctx := context.Background()
			d, err := openDB(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := slots.NewRepo(d)
			var list []slots.Slot
			if available {
				list, err = repo.ListAvailable(ctx, st)
			} else {
				list, err = repo.List(ctx)
			}
			if err != nil {
				return err
			}
			for _, s := range list {
				if st != "" && s.SessionType != st {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id=%s %s %-7s capacity=%d available=%t\n",
					s.ID, s.Key(), s.SessionType, s.Capacity, s.Available)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&available, "available", false, "only slots that can still be booked")
	c.Flags().StringVar(&typ, "type", "", "filter by daytime or evening")
	return c
}
