package coronet

import (
	"sync"
	"time"
)

// IOInterest is a bitmask of readiness events a waiter can register for,
// per spec §4.4.
type IOInterest uint8

const (
	// InterestRead registers for read (or accept) readiness.
	InterestRead IOInterest = 1 << iota
	// InterestWrite registers for write (connect-complete) readiness.
	InterestWrite
)

// fdCallback is invoked at most once per registration, from the reactor's
// poll loop, with the error code observed for the descriptor (the zero
// ErrorCode on plain readiness).
type fdCallback func(ErrorCode)

// poller is the per-platform reactor backend, grounded on the teacher's
// poller_linux.go/poller_darwin.go/poller_windows.go FastPoller split: one
// real OS multiplexer (epoll/kqueue/WSAPoll) behind a small shared interface.
type poller interface {
	init() ErrorCode
	close() ErrorCode
	registerFD(fd int, interest IOInterest, cb fdCallback) ErrorCode
	unregisterFD(fd int) ErrorCode
	poll(timeout time.Duration) ErrorCode
	wake() ErrorCode
}

// Reactor is the single-threaded event loop of spec §4.3: one Reactor owns
// one OS-level poller, and every Socket and Server constructed against it
// shares that poller and its Run goroutine.
type Reactor struct {
	cfg config
	p   poller

	mu     sync.Mutex
	closed bool
}

// NewReactor allocates a Reactor. Call Create to open its backing poller
// before constructing any Socket or Server against it.
func NewReactor(options ...Option) *Reactor {
	return &Reactor{cfg: newConfig(options)}
}

// Create opens the reactor's OS-level poller.
func (r *Reactor) Create() ErrorCode {
	r.p = newPoller()
	if ec := r.p.init(); !ec.IsZero() {
		logError(r.cfg.logger, "reactor.create", ec)
		return ec
	}
	return ErrorCode{}
}

// pollInterval bounds how long a single poll() call blocks, so Run notices
// Close promptly even on platforms whose wake() is best-effort.
const pollInterval = 250 * time.Millisecond

// Run drives the reactor's poll loop until Close is called or the poller
// reports an unrecoverable error. processor mirrors spec §4.3's processor
// affinity parameter; this implementation runs the whole loop on the
// calling goroutine regardless of its value.
func (r *Reactor) Run(processor int) ErrorCode {
	r.cfg.logger.Info().Int(`processor`, processor).Log(`reactor run starting`)
	for {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return ErrorCode{}
		}
		if ec := r.p.poll(pollInterval); !ec.IsZero() {
			logError(r.cfg.logger, "reactor.poll", ec)
			return ec
		}
	}
}

// Close stops Run and releases the underlying poller. Close is idempotent.
func (r *Reactor) Close() ErrorCode {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrorCode{}
	}
	r.closed = true
	r.mu.Unlock()
	_ = r.p.wake()
	return r.p.close()
}

func (r *Reactor) arm(fd int, interest IOInterest, cb fdCallback) ErrorCode {
	return r.p.registerFD(fd, interest, cb)
}

func (r *Reactor) disarm(fd int) ErrorCode {
	return r.p.unregisterFD(fd)
}
