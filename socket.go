package coronet

import "context"

// Family selects the address family a Socket or Server operates in,
// per spec §6.
type Family int

const (
	// IPv4 selects AF_INET.
	IPv4 Family = iota
	// IPv6 selects AF_INET6.
	IPv6
)

// SockType selects the transport a Socket operates over, per spec §6.
type SockType int

const (
	// TCP selects SOCK_STREAM.
	TCP SockType = iota
	// UDP selects SOCK_DGRAM.
	UDP
)

// Socket is the async I/O endpoint of spec §4.7: a non-blocking descriptor
// whose Recv and Send operations suspend on the owning Reactor instead of
// blocking a goroutine on the syscall. Exact recv/send retry-on-EAGAIN
// semantics are grounded on original_source/src/coronet/kqueue/socket.cpp.
type Socket struct {
	cfg     config
	reactor *Reactor
	handle  Handle
	w       *waiter
	lastErr ErrorCode
}

// NewSocket allocates a Socket bound to reactor. Call Create before use.
func NewSocket(reactor *Reactor, options ...Option) *Socket {
	return &Socket{cfg: newConfig(options), reactor: reactor}
}

// Create opens a non-blocking socket of the given family and type.
func (s *Socket) Create(family Family, typ SockType) ErrorCode {
	fd, ec := sockCreate(family, typ)
	if !ec.IsZero() {
		s.lastErr = ec
		logError(s.cfg.logger, "socket.create", ec)
		return ec
	}
	s.adopt(fd)
	return ErrorCode{}
}

func (s *Socket) adopt(fd int) {
	s.handle = NewHandle(int64(fd), func(d int64) error { return sockClose(int(d)) })
	s.w = newWaiter(s.reactor, fd)
}

// Set configures a boolean socket option (spec §6: `set(option, bool)`,
// currently OptionNoDelay / TCP_NODELAY).
func (s *Socket) Set(option SocketOption, value bool) ErrorCode {
	ec := sockSetOption(int(s.handle.Value()), option, value)
	if !ec.IsZero() {
		s.lastErr = ec
	}
	return ec
}

// Connect connects the socket to host:port, suspending on write-readiness
// while the non-blocking connect completes.
func (s *Socket) Connect(ctx context.Context, family Family, host string, port int) ErrorCode {
	ec := sockConnect(int(s.handle.Value()), family, host, port)
	if wouldBlock(ec) {
		if wec := s.w.wait(ctx, InterestWrite); !wec.IsZero() {
			s.lastErr = wec
			return wec
		}
		return ErrorCode{}
	}
	if !ec.IsZero() {
		s.lastErr = ec
	}
	return ec
}

// Recv returns an AsyncGenerator yielding the number of bytes read into buf
// on each successive read (buf is reused across yields, matching spec §6's
// single-buffer Recv), ending the stream with Eof on peer close or with
// any other ErrorCode on failure.
func (s *Socket) Recv(ctx context.Context, buf []byte) *AsyncGenerator[int] {
	return NewAsyncGenerator(func(yield Yield[int]) error {
		for {
			n, ec := sockRecv(int(s.handle.Value()), buf)
			switch {
			case wouldBlock(ec):
				if wec := s.w.wait(ctx, InterestRead); !wec.IsZero() {
					return wec
				}
			case !ec.IsZero():
				s.lastErr = ec
				logError(s.cfg.logger, "socket.recv", ec)
				return ec
			case n == 0:
				s.lastErr = Eof
				logError(s.cfg.logger, "socket.recv", Eof)
				return Eof
			default:
				if !yield(n) {
					return Cancelled
				}
			}
		}
	})
}

// Send writes all of data, suspending on write-readiness between partial
// writes, and resolves the returned SingleFuture with the zero ErrorCode
// on success.
func (s *Socket) Send(ctx context.Context, data []byte) *SingleFuture[ErrorCode] {
	fut := NewSingleFuture[ErrorCode]()
	go func() {
		off := 0
		for off < len(data) {
			n, ec := sockSend(int(s.handle.Value()), data[off:])
			switch {
			case wouldBlock(ec):
				if wec := s.w.wait(ctx, InterestWrite); !wec.IsZero() {
					fut.Set(wec, nil)
					return
				}
			case !ec.IsZero():
				s.lastErr = ec
				logError(s.cfg.logger, "socket.send", ec)
				fut.Set(ec, nil)
				return
			default:
				off += n
			}
		}
		fut.Set(ErrorCode{}, nil)
	}()
	return fut
}

// Close closes the socket's descriptor.
func (s *Socket) Close() ErrorCode {
	if err := s.handle.Close(); err != nil {
		ec := FromError(err)
		s.lastErr = ec
		return ec
	}
	return ErrorCode{}
}

// LastError returns the most recent ErrorCode observed by this socket.
func (s *Socket) LastError() ErrorCode {
	return s.lastErr
}

// fd exposes the raw descriptor for Server's accepted-connection adoption.
func (s *Socket) fd() int {
	return int(s.handle.Value())
}
