package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/takeover-week/internal/auth"
	"github.com/example/takeover-week/internal/booking"
	"github.com/example/takeover-week/internal/crawls"
	"github.com/example/takeover-week/internal/notify"
	"github.com/example/takeover-week/internal/registrations"
	"github.com/example/takeover-week/internal/relay"
	"github.com/example/takeover-week/internal/sessions"
	"github.com/example/takeover-week/internal/slots"
	"github.com/example/takeover-week/internal/web"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the registration API and, when AMQP_URL is set, the notification relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDB(ctx, cfg, log, migrateUp)
			if err != nil {
				return err
			}
			defer d.Close()

			slotRepo := slots.NewRepo(d)
			sessionRepo := sessions.NewRepo(d)
			regRepo := registrations.NewRepo(d)
			crawlRepo := crawls.NewRepo(d)

			bookingSvc := booking.NewService(booking.PGStore{DB: d}, cfg.StaffEmailDomain, log)
			notifySvc := notify.NewService(regRepo, crawlRepo, log)
			authStore := auth.NewStore(auth.PGAdmins{DB: d}, cfg.CookieHashKey, cfg.CookieBlockKey)

			relayDone := make(chan struct{})
			if cfg.RelayEnabled() {
				pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
				if err != nil {
					return err
				}
				defer pub.Close()

				rl := &relay.Relay{
					Feed:      notifySvc,
					Publisher: pub,
					Interval:  cfg.RelayPoll,
					Batch:     cfg.RelayBatch,
					Log:       log.With().Str("component", "relay").Logger(),
				}
				go func() {
					defer close(relayDone)
					if err := rl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("relay stopped")
					}
				}()
			} else {
				close(relayDone)
				log.Info().Msg("AMQP_URL not set; notifications are served by polling only")
			}

			ws := &web.Server{
				Auth:           authStore,
				Booking:        bookingSvc,
				Notify:         notifySvc,
				Slots:          slotRepo,
				Sessions:       sessionRepo,
				Registrations:  regRepo,
				Crawls:         crawlRepo,
				DB:             d,
				AllowedOrigins: cfg.AllowedOrigins,
				NotifyAPIKey:   cfg.NotifyAPIKey,
				Log:            log,
			}
			err = web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
			cancel()
			<-relayDone
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
