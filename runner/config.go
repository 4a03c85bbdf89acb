package runner

import (
	"io"
	"log"
	"time"
)

// Config holds configuration for a runner.
type Config struct {
	// Service is the credkeeper service to lease a credential on.
	Service string

	// Wait bounds the credential acquisition. Zero applies the source's
	// default.
	Wait time.Duration

	// Program is the command to run and Args are its arguments.
	Program string
	Args    []string

	// Env holds extra KEY=VALUE pairs appended after the inherited
	// environment and the injected credential variables.
	Env []string

	// Standard streams of the child process. Nil values leave the child
	// without that stream.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives diagnostic output. It may be nil.
	Logger *log.Logger
}
