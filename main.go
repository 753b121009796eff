package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/concentration/internal/config"
	"github.com/robalobadob/concentration/internal/httpserver"
	"github.com/robalobadob/concentration/internal/listener"
	"github.com/robalobadob/concentration/internal/session"
	"github.com/robalobadob/concentration/internal/store"
)

func main() {
	args, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg)

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history store")
	}
	defer st.Close()

	h := session.New(session.Config{
		Dimension:   args.Dimension,
		RevealDelay: cfg.RevealDelay,
		Cheat:       cfg.Cheat,
		Store:       st,
		Logger:      log.Logger,
	})
	tcp := listener.New(args.Addr(), func(ctx context.Context, conn net.Conn) {
		h.Handle(ctx, conn, "tcp")
	}, log.Logger)
	if err := tcp.Listen(); err != nil {
		log.Fatal().Err(err).Int("port", args.Port).Msg("failed to start the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("port", args.Port).Int("dimension", args.Dimension).Msg("starting concentration server")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tcp.Serve(ctx) })
	if cfg.HTTPAddr != "" {
		srv := httpserver.New(httpserver.Config{
			Handler:        h,
			Store:          st,
			Tracker:        tcp,
			HistoryLimit:   cfg.HistoryLimit,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         log.Logger,
		})
		g.Go(func() error { return srv.Serve(ctx, cfg.HTTPAddr) })
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited")
		st.Close()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Env) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func openStore(cfg config.Env) (store.Store, error) {
	if cfg.DatabasePath == "" {
		return store.NewMemoryStore(), nil
	}
	log.Info().Str("path", cfg.DatabasePath).Msg("using sqlite history")
	return store.OpenSQLite(cfg.DatabasePath)
}
