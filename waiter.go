package coronet

import "context"

// waiter is the one-shot I/O wait primitive described in spec §4.4: a
// single pending interest (read and/or write) registered against a file
// descriptor with a Reactor, resolved exactly once when the descriptor
// becomes ready or the wait is abandoned. "One-shot" describes each
// individual registration (mirroring epoll's EPOLLONESHOT and kqueue's
// EV_ONESHOT); a Socket or Server reuses the same waiter value across many
// successive waits on its descriptor.
type waiter struct {
	reactor *Reactor
	fd      int
}

func newWaiter(r *Reactor, fd int) *waiter {
	return &waiter{reactor: r, fd: fd}
}

// wait blocks until fd becomes ready for interest or ctx is done; closing
// the reactor does not release a pending wait. It re-arms a fresh one-shot registration with the
// poller on every call, exactly mirroring the original implementation's
// "await readiness, then retry the syscall" loop (kqueue/socket.cpp,
// epoll/events.cpp).
func (w *waiter) wait(ctx context.Context, interest IOInterest) ErrorCode {
	fut := NewSingleFuture[ErrorCode]()
	if ec := w.reactor.arm(w.fd, interest, func(ec ErrorCode) {
		fut.Set(ec, nil)
	}); !ec.IsZero() {
		return ec
	}
	ec, waitErr := fut.Wait(ctx)
	if waitErr != nil {
		w.reactor.disarm(w.fd)
		return Cancelled
	}
	return ec
}
