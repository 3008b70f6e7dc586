//go:build windows

package coronet

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// wsaPoller is the windows [poller] backend. True I/O completion (IOCP
// against WSARecv/WSASend/AcceptEx with OVERLAPPED, per
// original_source/src/coronet/iocp/event.h and the teacher's
// poller_windows.go) is not wired here: this module's waiter abstraction
// (waiter.go) is readiness-shaped, matching epoll/kqueue, and nothing in
// this module submits the overlapped WSARecv/WSASend/AcceptEx calls a real
// completion port would need to report against. wsaPoller instead polls
// the registered descriptors directly with WSAPoll, bounded by the
// timeout Reactor.Run already supplies (reactor.go's pollInterval), so
// wake is best-effort — exactly the "platforms whose wake() is
// best-effort" case reactor.go's own doc comment anticipates, rather than
// a hand-rolled self-pipe standing in for a completion port this module
// doesn't otherwise use.
type wsaPoller struct {
	mu     sync.Mutex
	fds    map[int]wsaEntry
	closed bool
}

type wsaEntry struct {
	cb       fdCallback
	interest IOInterest
}

func newPoller() poller {
	return &wsaPoller{fds: make(map[int]wsaEntry)}
}

func (p *wsaPoller) init() ErrorCode {
	return ErrorCode{}
}

func (p *wsaPoller) close() ErrorCode {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return ErrorCode{}
}

func (p *wsaPoller) registerFD(fd int, interest IOInterest, cb fdCallback) ErrorCode {
	p.mu.Lock()
	p.fds[fd] = wsaEntry{cb: cb, interest: interest}
	p.mu.Unlock()
	return ErrorCode{}
}

func (p *wsaPoller) unregisterFD(fd int) ErrorCode {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	return ErrorCode{}
}

// wake is a no-op: see the type doc. Reactor.Run's bounded pollInterval is
// what actually guarantees Close is noticed promptly on this platform.
func (p *wsaPoller) wake() ErrorCode {
	return ErrorCode{}
}

func (p *wsaPoller) poll(timeout time.Duration) ErrorCode {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrorCode{}
	}
	fds := make([]windows.WSAPollFd, 0, len(p.fds))
	order := make([]int, 0, len(p.fds))
	for fd, e := range p.fds {
		var events int16
		if e.interest&InterestRead != 0 {
			events |= windows.POLLRDNORM
		}
		if e.interest&InterestWrite != 0 {
			events |= windows.POLLWRNORM
		}
		fds = append(fds, windows.WSAPollFd{Fd: windows.Handle(fd), Events: events})
		order = append(order, fd)
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		// Nothing registered: sleep out the interval rather than busy-loop;
		// WSAPoll with an empty fd set is underspecified on some stacks.
		time.Sleep(timeout)
		return ErrorCode{}
	}

	n, err := windows.WSAPoll(fds, int32(timeout/time.Millisecond))
	if err != nil {
		return OSError(0, err.Error())
	}
	if n <= 0 {
		return ErrorCode{}
	}

	for i, pfd := range fds {
		if pfd.REvents == 0 {
			continue
		}
		fd := order[i]
		p.mu.Lock()
		entry, ok := p.fds[fd]
		delete(p.fds, fd)
		p.mu.Unlock()
		if !ok || entry.cb == nil {
			continue
		}
		ec := ErrorCode{}
		if pfd.REvents&(windows.POLLERR|windows.POLLHUP) != 0 {
			ec = OSError(int(pfd.REvents), "wsapoll reported error or hangup")
		}
		entry.cb(ec)
	}
	return ErrorCode{}
}
