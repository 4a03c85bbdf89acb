package keeper

import (
	"context"
	"log"
	"os"
	"os/signal"
)

// guard watches for termination signals while a claim is outstanding. When
// one arrives it synchronously releases the claim, then re-raises the
// signal with its default disposition restored so the process still
// terminates the way its caller expects.
type guard struct {
	signals chan os.Signal
	quit    chan struct{}
	done    chan struct{}

	// Injection points. Tests replace these to deliver synthetic signals
	// without killing the test process.
	notify   func(chan<- os.Signal, ...os.Signal)
	unnotify func(chan<- os.Signal)
	rethrow  func(os.Signal)
}

// armGuard starts signal protection for the given claim. It must be called
// only after the claim's handle is set.
func armGuard(cl *Claim, logger *log.Logger) *guard {
	g := &guard{
		signals:  make(chan os.Signal, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		notify:   signal.Notify,
		unnotify: signal.Stop,
		rethrow:  rethrow,
	}
	g.notify(g.signals, terminationSignals...)
	go g.watch(cl, logger)
	return g
}

func (g *guard) watch(cl *Claim, logger *log.Logger) {
	defer close(g.done)

	select {
	case sig := <-g.signals:
		g.unnotify(g.signals)
		printf(logger, "received %v with a credential claim outstanding", sig)
		if handle, ok := cl.clear(); ok {
			// The process is about to die. Release once, within a bounded
			// window, and log rather than block termination on failure.
			ctx, cancel := context.WithTimeout(context.Background(), cl.owner.timeout)
			if err := cl.owner.release(ctx, handle, 1); err != nil {
				printf(logger, "release of lease %s failed: %v", handle, err)
			} else {
				printf(logger, "released lease %s", handle)
			}
			cancel()
		}
		g.rethrow(sig)
	case <-g.quit:
		g.unnotify(g.signals)
	}
}

// stop disarms the guard after a normal release.
func (g *guard) stop() {
	close(g.quit)
}

// wait blocks until the guard goroutine has exited.
func (g *guard) wait() {
	<-g.done
}
