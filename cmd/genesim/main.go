// Command genesim runs seeded multi-generation breeding simulations and
// publishes their statistics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"genesim/internal/config"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

// cli runs the command line and maps the outcome to an exit status:
// 0 on success, 2 for an invalid configuration, 1 otherwise.
func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if _, werr := fmt.Fprintf(stderr, "genesim: %v\n", err); werr != nil {
			return 1
		}
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return 2
		}
		return 1
	}
	return 0
}
