//go:build darwin

package coronet

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the darwin/bsd [poller] backend, grounded on the
// teacher's kqueue-based FastPoller (eventloop/poller_darwin.go) and the
// original implementation's native one-shot usage
// (original_source/src/coronet/kqueue/event.h: EV_ADD|EV_ONESHOT). Unlike
// epoll, kqueue retires a EV_ONESHOT registration itself once it fires, so
// there is no explicit delete-on-fire step.
type kqueuePoller struct {
	kq    int
	wakeR *os.File
	wakeW *os.File

	mu  sync.Mutex
	fds map[int]fdCallback
}

func newPoller() poller {
	return &kqueuePoller{fds: make(map[int]fdCallback)}
}

func (p *kqueuePoller) init() ErrorCode {
	kq, err := unix.Kqueue()
	if err != nil {
		return errnoOf(err)
	}
	p.kq = kq

	r, w, err := os.Pipe()
	if err != nil {
		_ = unix.Close(kq)
		return OSError(0, err.Error())
	}
	p.wakeR, p.wakeW = r, w

	ev := unix.Kevent_t{}
	unix.SetKevent(&ev, int(r.Fd()), unix.EVFILT_READ, unix.EV_ADD)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

func (p *kqueuePoller) close() ErrorCode {
	_ = p.wakeR.Close()
	_ = p.wakeW.Close()
	if err := unix.Close(p.kq); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

func (p *kqueuePoller) registerFD(fd int, interest IOInterest, cb fdCallback) ErrorCode {
	p.mu.Lock()
	p.fds[fd] = cb
	p.mu.Unlock()

	var changes []unix.Kevent_t
	if interest&InterestRead != 0 {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ONESHOT)
		changes = append(changes, ev)
	}
	if interest&InterestWrite != 0 {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ONESHOT)
		changes = append(changes, ev)
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

func (p *kqueuePoller) unregisterFD(fd int) ErrorCode {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()

	readEv := unix.Kevent_t{}
	unix.SetKevent(&readEv, fd, unix.EVFILT_READ, unix.EV_DELETE)
	writeEv := unix.Kevent_t{}
	unix.SetKevent(&writeEv, fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	_, _ = unix.Kevent(p.kq, []unix.Kevent_t{readEv, writeEv}, nil, nil)
	return ErrorCode{}
}

func (p *kqueuePoller) wake() ErrorCode {
	if _, err := p.wakeW.Write([]byte{0}); err != nil {
		return OSError(0, err.Error())
	}
	return ErrorCode{}
}

const maxKqueueEvents = 256

func (p *kqueuePoller) poll(timeout time.Duration) ErrorCode {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	var events [maxKqueueEvents]unix.Kevent_t
	n, err := unix.Kevent(p.kq, nil, events[:], &ts)
	if err != nil {
		if err == unix.EINTR {
			return ErrorCode{}
		}
		return errnoOf(err)
	}

	wakeFD := int(p.wakeR.Fd())
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		if fd == wakeFD {
			buf := make([]byte, 64)
			_, _ = unix.Read(wakeFD, buf)
			continue
		}

		p.mu.Lock()
		cb, ok := p.fds[fd]
		delete(p.fds, fd)
		p.mu.Unlock()
		if !ok || cb == nil {
			continue
		}

		ec := ErrorCode{}
		if events[i].Flags&unix.EV_ERROR != 0 {
			ec = OSError(int(events[i].Data), "kqueue reported error")
		}
		cb(ec)
	}
	return ErrorCode{}
}
