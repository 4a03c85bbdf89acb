//go:build windows

package keeper

import (
	"os"
	"syscall"
)

// terminationSignals trigger release of an outstanding claim before the
// process dies. Windows delivers os.Interrupt for both ctrl-c and
// ctrl-break.
var terminationSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}

// rethrow terminates the process. Windows cannot re-deliver a signal to the
// current process, so exit with the status the Go runtime uses for an
// untrapped interrupt.
func rethrow(sig os.Signal) {
	os.Exit(2)
}
