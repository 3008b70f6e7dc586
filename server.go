package coronet

import "context"

// AcceptPolicy controls how Server.Accept treats a second accept failure
// observed immediately after a readiness wake (spec §9's Open Question:
// "real-world servers typically ignore transient per-connection errors...
// an implementer should add a configurable policy; do not silently
// diverge").
type AcceptPolicy int

const (
	// AcceptPolicyFatal matches the original implementation exactly
	// (original_source/src/coronet/kqueue/server.cpp:77-80): a second
	// accept failure right after a readiness wake — of any kind,
	// including another EAGAIN/EWOULDBLOCK — ends the stream with Eof.
	// It never retries a third time. This is the default.
	AcceptPolicyFatal AcceptPolicy = iota
	// AcceptPolicyRetryTransient diverges from the original: a second
	// EAGAIN/EWOULDBLOCK after the wake is treated as transient and the
	// accept loop waits for readiness again, rather than ending the
	// stream. Non-EAGAIN failures remain fatal under this policy too.
	AcceptPolicyRetryTransient
)

// Server is the listening-socket counterpart to Socket (spec §4.7, §6): it
// owns a bound, listening descriptor and exposes accepted connections as
// an AsyncGenerator, grounded on
// original_source/src/coronet/kqueue/server.cpp's accept loop.
type Server struct {
	cfg     config
	reactor *Reactor
	handle  Handle
	w       *waiter
	port    int
	lastErr ErrorCode
}

// NewServer allocates a Server bound to reactor. Call Create before use.
func NewServer(reactor *Reactor, options ...Option) *Server {
	return &Server{cfg: newConfig(options), reactor: reactor}
}

// Create opens, binds, and listens a socket on host:port.
func (srv *Server) Create(family Family, host string, port int, backlog int) ErrorCode {
	fd, ec := sockCreate(family, TCP)
	if !ec.IsZero() {
		srv.lastErr = ec
		logError(srv.cfg.logger, "server.create", ec)
		return ec
	}
	if ec := sockBindListen(fd, family, host, port, backlog); !ec.IsZero() {
		_ = sockClose(fd)
		srv.lastErr = ec
		logError(srv.cfg.logger, "server.create", ec)
		return ec
	}
	boundPort, ec := sockLocalPort(fd)
	if !ec.IsZero() {
		_ = sockClose(fd)
		srv.lastErr = ec
		logError(srv.cfg.logger, "server.create", ec)
		return ec
	}
	srv.handle = NewHandle(int64(fd), func(d int64) error { return sockClose(int(d)) })
	srv.w = newWaiter(srv.reactor, fd)
	srv.port = boundPort
	return ErrorCode{}
}

// Port returns the port the listening socket is actually bound to,
// resolving the OS-assigned ephemeral port when Create was called with
// port 0. It is only meaningful after a successful Create.
func (srv *Server) Port() int {
	return srv.port
}

// Accept returns an AsyncGenerator yielding one Socket per accepted
// connection. Its error policy on a second accept failure, observed
// immediately after a readiness wake, is AcceptPolicy (default
// AcceptPolicyFatal, matching original_source/src/coronet/kqueue/
// server.cpp:77-80 exactly: the second failure is treated as Eof and the
// stream ends, regardless of whether it was EAGAIN again or something
// else). This resolves spec §9's Open Question ("do not silently
// diverge") by making the divergence an explicit, named option
// (WithAcceptPolicy) rather than an undocumented retry-forever loop.
func (srv *Server) Accept(ctx context.Context) *AsyncGenerator[*Socket] {
	return NewAsyncGenerator(func(yield Yield[*Socket]) error {
		for {
			nfd, ec := sockAccept(srv.fd())
			if wouldBlock(ec) {
				if wec := srv.w.wait(ctx, InterestRead); !wec.IsZero() {
					return wec
				}
				nfd, ec = sockAccept(srv.fd())
				if !ec.IsZero() {
					if srv.cfg.acceptPolicy == AcceptPolicyRetryTransient && wouldBlock(ec) {
						continue
					}
					srv.lastErr = Eof
					logError(srv.cfg.logger, "server.accept", Eof)
					return Eof
				}
			}
			if !ec.IsZero() {
				srv.lastErr = ec
				logError(srv.cfg.logger, "server.accept", ec)
				return ec
			}
			conn := NewSocket(srv.reactor, WithLogger(srv.cfg.logger))
			conn.adopt(nfd)
			if !yield(conn) {
				return Cancelled
			}
		}
	})
}

// Stop closes the listening descriptor, ending any in-flight Accept
// generator with Eof or Cancelled on its next wake.
func (srv *Server) Stop() ErrorCode {
	if err := srv.handle.Close(); err != nil {
		ec := FromError(err)
		srv.lastErr = ec
		return ec
	}
	return ErrorCode{}
}

// LastError returns the most recent ErrorCode observed by this server.
func (srv *Server) LastError() ErrorCode {
	return srv.lastErr
}

func (srv *Server) fd() int {
	return int(srv.handle.Value())
}
