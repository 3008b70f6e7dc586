package coronet

import (
	"os"
	"os/signal"
	"sync"
)

// signalDispatch is the process-wide, mutex-guarded handler table described
// in spec §9 ("keep the global map behind a mutex... invocation of user
// handlers happens outside the lock"), grounded on
// original_source/src/coronet/signal.cpp, generalized from SIGINT-only to
// any os.Signal.
type signalDispatch struct {
	mu       sync.Mutex
	handlers map[os.Signal]func()
	stopOnce map[os.Signal]chan struct{}
}

var globalSignals = &signalDispatch{
	handlers: make(map[os.Signal]func()),
	stopOnce: make(map[os.Signal]chan struct{}),
}

// Signal installs handler to run, on its own goroutine, the next time sig
// is delivered to the process. Registering a new handler for a signal that
// already has one replaces it and stops the previous listener.
func Signal(sig os.Signal, handler func()) {
	globalSignals.mu.Lock()
	if stop, ok := globalSignals.stopOnce[sig]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	globalSignals.handlers[sig] = handler
	globalSignals.stopOnce[sig] = stop
	globalSignals.mu.Unlock()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			globalSignals.mu.Lock()
			h := globalSignals.handlers[sig]
			globalSignals.mu.Unlock()
			if h != nil {
				h()
			}
		case <-stop:
		}
	}()
}

// ResetSignal removes any handler registered for sig.
func ResetSignal(sig os.Signal) {
	globalSignals.mu.Lock()
	defer globalSignals.mu.Unlock()
	if stop, ok := globalSignals.stopOnce[sig]; ok {
		close(stop)
		delete(globalSignals.stopOnce, sig)
	}
	delete(globalSignals.handlers, sig)
}
