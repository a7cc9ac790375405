package bridge

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

// Run parses args and serves the proxy until SIGINT or SIGTERM
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	service, err := New(ctx, options, os.Stderr)
	if err != nil {
		return err
	}
	return service.ListenAndServe(ctx)
}
