package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"phaseweaver/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	res, err := cli.Run(ctx, os.Args[1:], cli.IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
	stop()

	var invErr *cli.InvocationError
	if errors.As(err, &invErr) {
		fmt.Fprintf(os.Stderr, "Error: %s\nRun 'phaseweaver --help' for usage.\n", invErr.Message)
	}
	os.Exit(res.ExitCode)
}
