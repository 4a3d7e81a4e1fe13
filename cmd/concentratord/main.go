package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lorawan-server/lorawan-concentratord/internal/api"
	"github.com/lorawan-server/lorawan-concentratord/internal/commands"
	"github.com/lorawan-server/lorawan-concentratord/internal/config"
	"github.com/lorawan-server/lorawan-concentratord/internal/hal"
	"github.com/lorawan-server/lorawan-concentratord/internal/stats"
	"github.com/lorawan-server/lorawan-concentratord/internal/storage"
)

func main() {
	var configFile, tokenSubject string
	flag.StringVar(&configFile, "config", "configs/concentratord.yaml", "config file path")
	flag.StringVar(&tokenSubject, "token", "", "print a status API token for this subject and exit")
	flag.Parse()

	// bootstrap logger until the config is loaded
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	if tokenSubject != "" {
		token, err := issueToken(cfg, tokenSubject)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token failed")
		}
		fmt.Println(token)
		return
	}

	if closer := setupLogging(cfg.Log); closer != nil {
		defer closer.Close()
	}

	gatewayID, err := cfg.GatewayID()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid gateway id")
	}

	log.Info().
		Str("gateway_id", gatewayID.String()).
		Str("model", cfg.Concentrator.Model).
		Msg("concentratord starting")

	// Connect to NATS
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("concentratord-"+gatewayID.String()),
		nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
		nats.ReconnectWait(cfg.NATS.ReconnectInterval),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to NATS failed")
	}
	defer nc.Close()

	log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")

	// Optional database
	var store storage.Store
	var statsStore stats.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("connect to database failed")
		}
		defer pg.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("migrate database failed")
		}

		store = pg
		statsStore = pg
		log.Info().Msg("connected to database")
	}

	subject := commands.CommandSubject(cfg.Commands.SubjectPrefix, gatewayID.String())
	transport, err := commands.NewNATSTransport(nc, subject)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe to commands failed")
	}
	defer transport.Close()

	log.Info().Str("subject", subject).Msg("listening for commands")

	d, err := newDaemon(cfg, gatewayID, hal.NewSimulator(cfg.Concentrator.CounterOffset), transport, store)
	if err != nil {
		log.Fatal().Err(err).Msg("create daemon failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	reporter := stats.NewReporter(d.collector, nc, statsStore, gatewayID.String(),
		commands.EventSubject(cfg.Commands.SubjectPrefix, gatewayID.String(), "stats"), cfg.Stats.Interval)
	g.Go(func() error {
		if err := reporter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.API.Port > 0 {
		server := api.NewRESTServer(cfg, d.queue, d.collector, store)
		g.Go(func() error {
			return server.ListenAndServe(fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := d.run(gctx); err != nil {
		log.Fatal().Err(err).Msg("downlink path failed")
	}

	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown")
	}

	log.Info().Msg("concentratord stopped")
}
