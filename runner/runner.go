// Package runner runs a command under a leased credential. It acquires a
// claim before the command starts, exposes the credential to the command
// through environment variables, and releases the claim exactly once when
// the command exits.
package runner

import (
	"context"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/keeper"
)

// Runner is a command runner that leases a credential for the lifetime of
// the command.
type Runner struct {
	source keeper.Source
	config Config
}

// New creates a new runner that leases credentials from the given source.
func New(source keeper.Source, config Config) (*Runner, error) {
	if config.Service == "" {
		return nil, errors.New("no service specified")
	}
	if config.Program == "" {
		return nil, errors.New("no program specified")
	}
	return &Runner{
		source: source,
		config: config,
	}, nil
}

// Run acquires a credential claim, runs the program with the credential in
// its environment, and releases the claim when the program exits.
//
// The program's own failure is returned unchanged, so callers can recover
// its exit code from an exec.ExitError. A release failure is returned only
// when the program itself succeeded; otherwise it is logged.
func (r *Runner) Run(ctx context.Context) (err error) {
	claim, err := r.source.Acquire(ctx, r.config.Service, r.config.Wait)
	if err != nil {
		return err
	}
	defer func() {
		relErr := claim.Release(context.Background())
		switch {
		case relErr == nil:
		case err == nil:
			err = relErr
		default:
			printf(r.config.Logger, "lease release also failed: %v", relErr)
		}
	}()

	return r.execute(ctx, claim)
}

// execute starts the command in its own child process and waits for it to
// finish. Cancellation of ctx kills the process.
func (r *Runner) execute(ctx context.Context, claim *keeper.Claim) error {
	printf(r.config.Logger, "Executing %s %s", r.config.Program, strings.Join(r.config.Args, " "))

	cmd := exec.CommandContext(ctx, r.config.Program, r.config.Args...)
	cmd.Stdin = r.config.Stdin
	cmd.Stdout = r.config.Stdout
	cmd.Stderr = r.config.Stderr
	cmd.Env = append(Environ(os.Environ(), claim), r.config.Env...)

	return cmd.Run()
}

func printf(logger *log.Logger, format string, v ...interface{}) {
	if logger != nil {
		logger.Printf(format, v...)
	}
}
