package main

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/runner"
)

// run leases a credential on the given service and runs the program with the
// credential in its environment, returning the program's exit code.
func run(ctx context.Context, logger *log.Logger, flags clientFlags, service string, wait time.Duration, program string, args []string) int {
	client, err := newClient(ctx, logger, flags, filepath.Base(program), false)
	if err != nil {
		logger.Printf("Unable to create credkeeper client: %v", err)
		return 2
	}

	r, err := runner.New(client, runner.Config{
		Service: service,
		Wait:    wait,
		Program: program,
		Args:    args,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Logger:  logger,
	})
	if err != nil {
		logger.Printf("Unable to prepare runner: %v", err)
		return 2
	}

	if err := r.Run(ctx); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			// Pass the program's exit code through unchanged
			return exit.ExitCode()
		}
		logger.Printf("Run failed: %v", err)
		return 2
	}
	return 0
}
