//go:build !windows

package keeper

import (
	"os"
	"os/signal"
	"syscall"
)

// terminationSignals trigger release of an outstanding claim before the
// process dies.
var terminationSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGABRT,
	syscall.SIGHUP,
	syscall.SIGPIPE,
}

// rethrow restores the default disposition for sig and re-raises it, so the
// process terminates with the exit status the signal would have produced.
func rethrow(sig os.Signal) {
	signal.Reset(sig)
	s, ok := sig.(syscall.Signal)
	if !ok {
		os.Exit(1)
	}
	if err := syscall.Kill(os.Getpid(), s); err != nil {
		os.Exit(1)
	}
}
