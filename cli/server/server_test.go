package server

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/rpcclient"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) config.Config {
	cfg, err := config.Decode([]byte(`ApplicationConfiguration:
  DBConfiguration:
    Type: boltdb
    BoltDBOptions:
      FilePath: ` + filepath.Join(t.TempDir(), "chain.bolt") + `
  RPC:
    Enabled: true
  Prometheus:
    Enabled: true
  Seeds:
    - "127.0.0.1:20333"
    - "127.0.0.1:20333"
`))
	require.NoError(t, err)
	// Ephemeral ports don't pass address validation.
	cfg.ApplicationConfiguration.RPC.Addresses = []string{"127.0.0.1:0"}
	cfg.ApplicationConfiguration.Prometheus.Addresses = []string{"127.0.0.1:0"}
	return cfg
}

func TestInitNode(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("bad store", func(t *testing.T) {
		cfg := config.Config{}
		cfg.ApplicationConfiguration.DBConfiguration.Type = "unknown"
		_, err := initNode(cfg, log, make(chan error, 1))
		require.Error(t, err)
	})

	cfg := testConfig(t)
	errChan := make(chan error, 8)
	n, err := initNode(cfg, log, errChan)
	require.NoError(t, err)
	n.start(context.Background(), cfg.ApplicationConfiguration.Seeds, errChan)
	stopped := false
	t.Cleanup(func() {
		if !stopped {
			n.stop()
		}
	})

	require.Len(t, n.peers.Peers(), 1)
	c, err := rpcclient.New(context.Background(), "http://"+n.rpc.Addresses()[0], rpcclient.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Subscribe([]string{"Block.Pushed"}, neorpc.SubscribeOptions{}))
	_, err = n.chain.GenerateBlock(context.Background(), 0)
	require.NoError(t, err)
	evs, err := c.WaitEvents(time.Second)
	require.NoError(t, err)
	require.Len(t, evs.Events, 1)

	n.stop()
	stopped = true
	require.Empty(t, errChan)

	// Blocks survive the restart.
	n, err = initNode(cfg, log, errChan)
	require.NoError(t, err)
	require.EqualValues(t, 1, n.chain.BlockHeight())
	require.NoError(t, n.store.Close())
}

func TestReloadLogLevel(t *testing.T) {
	d := t.TempDir()
	cfgPath := filepath.Join(d, config.DefaultConfigFile)
	newCtx := func() *cli.Context {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", d, "")
		return cli.NewContext(cli.NewApp(), set, nil)
	}

	_, err := reloadLogLevel(newCtx(), false)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(cfgPath, []byte("ApplicationConfiguration:\n  LogLevel: error\n"), os.ModePerm))
	lvl, err := reloadLogLevel(newCtx(), false)
	require.NoError(t, err)
	require.Equal(t, zapcore.ErrorLevel, lvl)

	lvl, err = reloadLogLevel(newCtx(), true)
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, lvl)
}

func TestStartServerArgs(t *testing.T) {
	set := flag.NewFlagSet("flagSet", flag.ExitOnError)
	require.NoError(t, set.Parse([]string{"extra"}))
	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.Error(t, startServer(ctx))

	set = flag.NewFlagSet("flagSet", flag.ExitOnError)
	set.String("config-path", t.TempDir(), "")
	ctx = cli.NewContext(cli.NewApp(), set, nil)
	require.Error(t, startServer(ctx))
}
