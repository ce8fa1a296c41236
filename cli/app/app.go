package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/eventbridge/cli/events"
	"github.com/nspcc-dev/eventbridge/cli/server"
	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "EventBridge\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an EventBridge instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "eventbridge"
	ctl.Version = config.Version
	ctl.Usage = "Blockchain node with long-poll event delivery"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, events.NewCommands()...)
	return ctl
}
