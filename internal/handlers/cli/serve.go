package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabapcia/tronwatch/internal/handlers/api"
	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/scheduler"

	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds how long in-flight HTTP requests may delay shutdown.
const shutdownTimeout = 10 * time.Second

// serveCommand returns the CLI command that runs the tracking daemon: the
// periodic scheduler plus the HTTP API.
//
// Usage example:
//
//	tronwatch serve
//
// The process runs until it receives an interrupt (SIGINT or SIGTERM).
func serveCommand(sched scheduler.Service, server *api.Server) *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Description: "Runs the periodic transaction tracking scheduler and the HTTP API.",
		Usage:       "Starts the tracking daemon. Terminates gracefully on Ctrl+C or termination signals.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			defer close(quit)

			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Close()

			serverErrCh := make(chan error, 1)
			go func() {
				serverErrCh <- server.Start(ctx)
			}()

			select {
			case err := <-serverErrCh:
				return err
			case <-quit:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error(ctx, "error shutting down http server", "error", err)
			}
			return nil
		},
	}
}
