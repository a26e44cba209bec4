// Command intercase correlates shared interface test cases with
// provider-only augmentation.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/intercase/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		// Commands report their own errors; flag and argument errors are
		// printed here.
		code := cli.GetExitCode(err)
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			code = cli.ExitCommandError
		}
		stop()
		os.Exit(code)
	}
}
