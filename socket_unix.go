//go:build linux || darwin

package coronet

import (
	"net"

	"golang.org/x/sys/unix"
)

// SocketOption names a boolean socket option settable via Socket.Set,
// per spec §6.
type SocketOption int

const (
	// OptionNoDelay controls TCP_NODELAY, set by the bundled server on
	// every accepted connection (original_source/src/coronet_server.cpp).
	OptionNoDelay SocketOption = iota
)

func sockDomain(f Family) int {
	if f == IPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func sockCreate(family Family, typ SockType) (int, ErrorCode) {
	domain := sockDomain(family)
	t := unix.SOCK_STREAM
	if typ == UDP {
		t = unix.SOCK_DGRAM
	}
	fd, err := unix.Socket(domain, t|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errnoOf(err)
	}
	return fd, ErrorCode{}
}

func sockClose(fd int) error {
	return unix.Close(fd)
}

func sockRecv(fd int, buf []byte) (int, ErrorCode) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, errnoOf(err)
	}
	return n, ErrorCode{}
}

func sockSend(fd int, buf []byte) (int, ErrorCode) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		return 0, errnoOf(err)
	}
	return n, ErrorCode{}
}

func wouldBlock(ec ErrorCode) bool {
	return ec.Kind == KindOS && (ec.Code == int(unix.EAGAIN) || ec.Code == int(unix.EWOULDBLOCK) || ec.Code == int(unix.EINPROGRESS))
}

func sockSetOption(fd int, option SocketOption, value bool) ErrorCode {
	switch option {
	case OptionNoDelay:
		v := 0
		if value {
			v = 1
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v); err != nil {
			return errnoOf(err)
		}
	}
	return ErrorCode{}
}

func toSockaddr(family Family, host string, port int) (unix.Sockaddr, ErrorCode) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, AddrError(0, "address resolution failed for "+host)
		}
		ip = ips[0]
	}
	if family == IPv6 {
		var addr [16]byte
		copy(addr[:], ip.To16())
		return &unix.SockaddrInet6{Port: port, Addr: addr}, ErrorCode{}
	}
	var addr [4]byte
	copy(addr[:], ip.To4())
	return &unix.SockaddrInet4{Port: port, Addr: addr}, ErrorCode{}
}

// sockBindListen binds and listens fd on host:port, setting SO_REUSEADDR
// first, mirroring the original implementation's server::create
// (original_source/src/coronet/kqueue/server.cpp).
func sockBindListen(fd int, family Family, host string, port int, backlog int) ErrorCode {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return errnoOf(err)
	}
	sa, ec := toSockaddr(family, host, port)
	if !ec.IsZero() {
		return ec
	}
	if err := unix.Bind(fd, sa); err != nil {
		return errnoOf(err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}

// sockAccept performs a single non-blocking accept4 attempt, per
// original_source/src/coronet/kqueue/server.cpp.
func sockAccept(fd int) (int, ErrorCode) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, errnoOf(err)
	}
	return nfd, ErrorCode{}
}

// sockLocalPort reports the port a bound socket is actually listening on,
// resolving an ephemeral (port 0) bind via getsockname, per spec §6's
// Server.create contract.
func sockLocalPort(fd int) (int, ErrorCode) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, errnoOf(err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, ErrorCode{}
	case *unix.SockaddrInet6:
		return a.Port, ErrorCode{}
	default:
		return 0, OSError(0, "getsockname returned an unsupported address family")
	}
}

func sockConnect(fd int, family Family, host string, port int) ErrorCode {
	sa, ec := toSockaddr(family, host, port)
	if !ec.IsZero() {
		return ec
	}
	if err := unix.Connect(fd, sa); err != nil {
		return errnoOf(err)
	}
	return ErrorCode{}
}
