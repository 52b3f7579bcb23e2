// Command physync is a minimal UDP relay for real-time, loss-tolerant
// traffic: "server" binds and forwards every peer's Data packets to every
// other connected peer; "client" is a thin driver used to exercise the relay
// against a running server.
//
// Grounded on the original net/peer.rs main-binary shape (bind, then either
// loop or connect) and on nspcc-dev-neo-go's cli/server/server.go (urfave/cli
// commands, signal.NotifyContext-driven shutdown) and
// dantte-lp-gobfd/cmd/gobfd/main.go (errgroup.Group running the relay loop
// and the metrics HTTP listener side by side under one cancellation).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/vanderian/physync/internal/config"
	"github.com/vanderian/physync/internal/metrics"
	"github.com/vanderian/physync/internal/relay"
)

func main() {
	app := &cli.App{
		Name:  "physync",
		Usage: "minimal UDP relay for real-time, loss-tolerant traffic",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides PHYSYNC_LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			clientCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:      "server",
		Usage:     "bind a UDP relay and forward traffic between all connected peers",
		ArgsUsage: "<LISTEN_HOST>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "if set, serve Prometheus metrics over HTTP at this address",
			},
		},
		Action: runServer,
	}
}

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:      "client",
		Usage:     "bind an ephemeral loopback socket and connect to a running relay",
		ArgsUsage: "<CONNECT_ADDR>",
		Action:    runClient,
	}
}

func runServer(c *cli.Context) error {
	listenHost := c.Args().First()
	if listenHost == "" {
		return cli.Exit("server requires LISTEN_HOST", 1)
	}

	log, err := newLogger(c, true)
	if err != nil {
		return cli.Exit(fmt.Errorf("build logger: %w", err), 1)
	}
	defer log.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	peer, err := relay.Bind(listenHost, collector, log)
	if err != nil {
		return cli.Exit(fmt.Errorf("bind %s: %w", listenHost, err), 1)
	}
	defer peer.Close() //nolint:errcheck

	log.Info("relay listening", zap.Stringer("addr", peer.LocalAddr()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	stopPoll := make(chan struct{})
	g.Go(func() error {
		peer.InLoop(stopPoll)
		return nil
	})

	if metricsAddr := c.String("metrics-addr"); metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		g.Go(func() error {
			log.Info("metrics listening", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		close(stopPoll)
		return nil
	})

	if err := g.Wait(); err != nil {
		return cli.Exit(err, 1)
	}
	log.Info("relay stopped")
	return nil
}

func runClient(c *cli.Context) error {
	connectAddr := c.Args().First()
	if connectAddr == "" {
		return cli.Exit("client requires CONNECT_ADDR", 1)
	}

	log, err := newLogger(c, false)
	if err != nil {
		return cli.Exit(fmt.Errorf("build logger: %w", err), 1)
	}
	defer log.Sync() //nolint:errcheck

	collector := metrics.NewUnregisteredCollector()

	peer, err := relay.BindAny(collector, log)
	if err != nil {
		return cli.Exit(fmt.Errorf("bind ephemeral socket: %w", err), 1)
	}
	defer peer.Close() //nolint:errcheck

	log.Info("client bound", zap.Stringer("addr", peer.LocalAddr()))

	if err := peer.Connect(connectAddr); err != nil {
		return cli.Exit(fmt.Errorf("connect %s: %w", connectAddr, err), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopPoll := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopPoll)
	}()
	peer.InLoop(stopPoll)

	log.Info("client stopped")
	return nil
}

// newLogger builds a production logger for the server role and a verbose
// development logger for the client role, matching the pack's convention of
// a quieter prod logger vs. a chattier dev one; the level comes from
// internal/config (PHYSYNC_LOG_LEVEL, overridable by --log-level).
func newLogger(c *cli.Context, production bool) (*zap.Logger, error) {
	cfg, err := config.Load(c.String("log-level"))
	if err != nil {
		return nil, err
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
