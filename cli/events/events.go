/*
Package events implements CLI commands talking to the event delivery service
of a running node.
*/
package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nspcc-dev/eventbridge/cli/options"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc/result"
	"github.com/urfave/cli"
)

// NewCommands returns 'events' command.
func NewCommands() []cli.Command {
	subscribeFlags := append([]cli.Flag{
		cli.BoolFlag{
			Name:  "add, a",
			Usage: "Add events to the existing subscription instead of replacing it",
		},
		cli.BoolFlag{
			Name:  "replace",
			Usage: "Replace the existing subscription explicitly",
		},
	}, options.RPC...)
	waitFlags := append([]cli.Flag{
		cli.DurationFlag{
			Name:  "wait",
			Value: -1,
			Usage: "How long the node should hold the request if there are no events, node default is used if negative",
		},
		cli.BoolFlag{
			Name:  "follow, f",
			Usage: "Keep waiting for events until the session is deactivated",
		},
	}, options.RPC...)
	return []cli.Command{{
		Name:  "events",
		Usage: "Subscribe to node events and receive them",
		Subcommands: []cli.Command{
			{
				Name:      "subscribe",
				Usage:     "Subscribe to events",
				UsageText: "eventbridge events subscribe -r endpoint [--add | --replace] [<event> ...]",
				Description: `Registers this client address for the given events. Events are
   named as Family.Member (like Block.Pushed), Ledger events can be narrowed
   to a single account with an additional account part (Ledger.AddEntry.42).
   All events are subscribed to if none is given.`,
				Action: subscribe,
				Flags:  subscribeFlags,
			},
			{
				Name:      "unsubscribe",
				Usage:     "Drop event subscriptions",
				UsageText: "eventbridge events unsubscribe -r endpoint [<event> ...]",
				Description: `Drops subscriptions for the given events. If no events are given the
   session is deactivated.`,
				Action: unsubscribe,
				Flags:  options.RPC,
			},
			{
				Name:      "wait",
				Usage:     "Wait for events",
				UsageText: "eventbridge events wait -r endpoint [--wait duration] [--follow]",
				Action:    wait,
				Flags:     waitFlags,
			},
		},
	}}
}

func subscribe(ctx *cli.Context) error {
	opts := neorpc.SubscribeOptions{
		Add:     ctx.Bool("add"),
		Replace: ctx.Bool("replace"),
	}
	if opts.Add && opts.Replace {
		return cli.NewExitError("--add and --replace can't be used together", 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	if err := c.Subscribe(ctx.Args(), opts); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func unsubscribe(ctx *cli.Context) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	if err := c.Unsubscribe(ctx.Args()); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func wait(ctx *cli.Context) error {
	if len(ctx.Args()) != 0 {
		return cli.NewExitError("unexpected arguments", 1)
	}
	var (
		timeout = ctx.Duration("wait")
		follow  = ctx.Bool("follow")
	)
	// Suspended calls extend the request deadline themselves, so the
	// command isn't limited as a whole.
	gctx := context.Background()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	for {
		evs, err := c.WaitEvents(timeout)
		if err != nil {
			var rpcErr *neorpc.Error
			if follow && errors.As(err, &rpcErr) &&
				(rpcErr.Code == neorpc.SessionDeactivatedCode || rpcErr.Code == neorpc.NoSessionRegisteredCode) {
				return nil
			}
			return cli.NewExitError(err, 1)
		}
		printEvents(ctx.App.Writer, evs)
		if !follow {
			return nil
		}
	}
}

func printEvents(w io.Writer, evs *result.Events) {
	for _, e := range evs.Events {
		ids := make([]string, len(e.IDs))
		for i, id := range e.IDs {
			ids[i] = strconv.FormatUint(id, 10)
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", e.Name, strings.Join(ids, ", "))
	}
}
