// Package cli wires the tronwatch commands: running the tracking daemon
// and triggering one-shot tracking cycles.
package cli

import (
	"context"
	"os"

	"github.com/gabapcia/tronwatch/internal/handlers/api"
	"github.com/gabapcia/tronwatch/internal/scheduler"
	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the tronwatch CLI application.
//
// It registers all available commands:
//
//   - `serve`: runs the periodic tracking scheduler and the HTTP API
//     until interrupted.
//   - `track`: runs a single tracking cycle and prints the newly
//     observed transactions.
//
// Parameters:
//   - ctx: Context controlling the lifecycle of the CLI application.
//   - tracker: the tracking service used by the track command.
//   - sched: the scheduler driving periodic cycles in serve mode.
//   - server: the HTTP API served in serve mode.
func Run(ctx context.Context, tracker txtracker.Service, sched scheduler.Service, server *api.Server) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "tronwatch",
		Description:           "Command-line interface for the tronwatch wallet transaction tracker.",
		Usage:                 "tronwatch [command] [flags]",
		Commands: []*cli.Command{
			serveCommand(sched, server),
			trackCommand(tracker),
		},
	}

	return app.Run(ctx, os.Args)
}
