package main

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/eventbridge/cli/app"
	"github.com/stretchr/testify/require"
)

func TestCLIVersion(t *testing.T) {
	ctl := app.New()
	out := new(bytes.Buffer)
	ctl.Writer = out
	require.NoError(t, ctl.Run([]string{"eventbridge", "--version"}))
	require.Contains(t, out.String(), "EventBridge\nVersion: ")
}

func TestCLICommands(t *testing.T) {
	ctl := app.New()
	for _, name := range []string{"node", "events"} {
		require.NotNil(t, ctl.Command(name), name)
	}
	ev := ctl.Command("events")
	var subs []string
	for _, c := range ev.Subcommands {
		subs = append(subs, c.Name)
	}
	require.Equal(t, []string{"subscribe", "unsubscribe", "wait"}, subs)
}
