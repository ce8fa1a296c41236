package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/eventbridge/cli/options"
	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"github.com/nspcc-dev/eventbridge/pkg/network"
	"github.com/nspcc-dev/eventbridge/pkg/services/metrics"
	"github.com/nspcc-dev/eventbridge/pkg/services/notifier"
	"github.com/nspcc-dev/eventbridge/pkg/services/rpcsrv"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns 'node' command.
func NewCommands() []cli.Command {
	var cfgFlags = []cli.Flag{options.Config, options.ConfigFile, options.RelativePath, options.Debug}
	return []cli.Command{
		{
			Name:      "node",
			Usage:     "start an event bridge node",
			UsageText: "eventbridge node [--config-path path] [--config-file file] [-d]",
			Action:    startServer,
			Flags:     cfgFlags,
		},
	}
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

// node holds everything started by the node command.
type node struct {
	store      storage.Store
	peers      *network.Registry
	pool       *mempool.Pool
	chain      *core.Blockchain
	notifier   *notifier.Registry
	rpc        *rpcsrv.Server
	prometheus *metrics.Service
	pprof      *metrics.Service
	log        *zap.Logger
}

// initNode creates node components from the given configuration, nothing is
// started yet.
func initNode(cfg config.Config, log *zap.Logger, errChan chan error) (*node, error) {
	appCfg := cfg.ApplicationConfiguration
	store, err := storage.NewStore(appCfg.DBConfiguration)
	if err != nil {
		return nil, fmt.Errorf("could not initialize storage: %w", err)
	}
	n := &node{
		store: store,
		peers: network.NewRegistry(log),
		pool:  mempool.New(appCfg.MempoolCapacity, log),
		log:   log,
	}
	l := ledger.New(store, log)
	n.chain, err = core.NewBlockchain(store, n.pool, l, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("could not initialize blockchain: %w", err)
	}
	n.notifier = notifier.NewRegistry(appCfg.Notifier, notifier.Sources{
		Peers:        n.peers,
		Blocks:       n.chain,
		Transactions: n.pool,
		Ledger:       l,
	}, notifier.StorageBoundary, log)
	svc := notifier.NewService(n.notifier, log)
	n.rpc = rpcsrv.New(n.chain, n.pool, n.peers, svc, appCfg.RPC, log, errChan)
	n.prometheus = metrics.NewPrometheusService(appCfg.Prometheus, log)
	n.pprof = metrics.NewPprofService(appCfg.Pprof, log)
	return n, nil
}

// start launches node services and registers seed peers.
func (n *node) start(ctx context.Context, seeds []string, errChan chan error) {
	n.prometheus.Start(errChan)
	n.pprof.Start(errChan)
	n.notifier.Start()
	n.rpc.Start()
	for _, addr := range seeds {
		if _, err := n.peers.AddPeer(ctx, addr, false); err != nil && !errors.Is(err, network.ErrPeerExists) {
			n.log.Warn("can't add seed peer", zap.String("address", addr), zap.Error(err))
		}
	}
}

// stop shuts services down in the reverse order. The RPC server goes first
// so that no new waits arrive to the notifier.
func (n *node) stop() {
	n.rpc.Shutdown()
	n.notifier.Shutdown()
	n.pprof.ShutDown()
	n.prometheus.ShutDown()
	if err := n.store.Close(); err != nil {
		n.log.Warn("can't close storage", zap.Error(err))
	}
}

func startServer(ctx *cli.Context) error {
	if len(ctx.Args()) != 0 {
		return cli.NewExitError(fmt.Errorf("unexpected arguments: %v", ctx.Args()), 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	var logDebug = ctx.Bool("debug")
	log, logLevel, logCloser, err := options.HandleLoggingParams(logDebug, cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}
	defer func() { _ = log.Sync() }()

	grace := newGraceContext()
	// Services report listener failures synchronously from Start.
	errChan := make(chan error, 8)

	n, err := initNode(cfg, log, errChan)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	n.start(grace, cfg.ApplicationConfiguration.Seeds, errChan)
	log.Info("node started",
		zap.Uint32("height", n.chain.BlockHeight()),
		zap.Strings("rpc", n.rpc.Addresses()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup)
	defer signal.Stop(sigCh)

	var shutdownErr error
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("server error: %w", err)
			log.Warn("shutting down because of a service failure", zap.Error(err))
			break Main
		case sig := <-sigCh:
			log.Info("signal received", zap.Stringer("name", sig))
			newLevel, err := reloadLogLevel(ctx, logDebug)
			if err != nil {
				log.Warn("can't reread the config file, signal ignored", zap.Error(err))
				break
			}
			log.Info("setting log level", zap.Stringer("level", newLevel))
			logLevel.SetLevel(newLevel)
		case <-grace.Done():
			break Main
		}
	}

	n.stop()
	if shutdownErr != nil {
		return cli.NewExitError(shutdownErr, 1)
	}
	return nil
}

// reloadLogLevel rereads the configuration, only the log level can be changed
// on the fly.
func reloadLogLevel(ctx *cli.Context, debug bool) (zapcore.Level, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return zapcore.InfoLevel, err
	}
	if debug {
		return zapcore.DebugLevel, nil
	}
	if cfg.ApplicationConfiguration.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(cfg.ApplicationConfiguration.LogLevel)
}
