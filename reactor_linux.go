//go:build linux

package coronet

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the linux [poller] backend, grounded on the teacher's
// epoll-based FastPoller (eventloop/poller_linux.go): one epoll instance,
// an fd-indexed callback table guarded by a mutex, callbacks invoked
// outside the lock. Every registration is one-shot (EPOLLONESHOT),
// matching the original implementation's ADD-then-wait, DEL-on-fire epoll
// usage (original_source/src/coronet/epoll/events.cpp).
type epollPoller struct {
	epfd  int
	wakeR *os.File
	wakeW *os.File

	mu  sync.Mutex
	fds map[int]epollEntry
}

type epollEntry struct {
	cb fdCallback
}

func newPoller() poller {
	return &epollPoller{fds: make(map[int]epollEntry)}
}

func interestToEpoll(i IOInterest) uint32 {
	events := uint32(unix.EPOLLONESHOT)
	if i&InterestRead != 0 {
		events |= unix.EPOLLIN
	}
	if i&InterestWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func errnoOf(err error) ErrorCode {
	if errno, ok := err.(unix.Errno); ok {
		return OSError(int(errno), errno.Error())
	}
	return OSError(0, err.Error())
}

func (p *epollPoller) init() ErrorCode {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return errnoOf(err)
	}
	p.epfd = fd

	r, w, err := os.Pipe()
	if err != nil {
		_ = unix.Close(fd)
		return OSError(0, err.Error())
	}
	p.wakeR, p.wakeW = r, w

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(r.Fd()), &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(r.Fd()),
	}); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

func (p *epollPoller) close() ErrorCode {
	_ = p.wakeR.Close()
	_ = p.wakeW.Close()
	if err := unix.Close(p.epfd); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

func (p *epollPoller) registerFD(fd int, interest IOInterest, cb fdCallback) ErrorCode {
	p.mu.Lock()
	_, existed := p.fds[fd]
	p.fds[fd] = epollEntry{cb: cb}
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: interestToEpoll(interest), Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if existed {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, ev); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

func (p *epollPoller) unregisterFD(fd int) ErrorCode {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return ErrorCode{}
}

func (p *epollPoller) wake() ErrorCode {
	if _, err := p.wakeW.Write([]byte{0}); err != nil {
		return OSError(0, err.Error())
	}
	return ErrorCode{}
}

const maxEpollEvents = 256

func (p *epollPoller) poll(timeout time.Duration) ErrorCode {
	var events [maxEpollEvents]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return ErrorCode{}
		}
		return errnoOf(err)
	}

	wakeFD := int(p.wakeR.Fd())
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == wakeFD {
			buf := make([]byte, 64)
			_, _ = unix.Read(wakeFD, buf)
			continue
		}

		p.mu.Lock()
		entry, ok := p.fds[fd]
		delete(p.fds, fd)
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		p.mu.Unlock()
		if !ok || entry.cb == nil {
			continue
		}

		ec := ErrorCode{}
		if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ec = OSError(int(events[i].Events), "epoll reported error or hangup")
		}
		entry.cb(ec)
	}
	return ErrorCode{}
}
