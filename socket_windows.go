//go:build windows

package coronet

import (
	"net"

	"golang.org/x/sys/windows"
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
		return windows.AF_INET6
	}
	return windows.AF_INET
}

func sockCreate(family Family, typ SockType) (int, ErrorCode) {
	domain := sockDomain(family)
	t := windows.SOCK_STREAM
	if typ == UDP {
		t = windows.SOCK_DGRAM
	}
	fd, err := windows.Socket(domain, t, 0)
	if err != nil {
		return -1, OSError(0, err.Error())
	}
	if err := windows.SetNonblock(fd, true); err != nil {
		_ = windows.Closesocket(fd)
		return -1, OSError(0, err.Error())
	}
	return int(fd), ErrorCode{}
}

func sockClose(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func sockRecv(fd int, buf []byte) (int, ErrorCode) {
	n, err := windows.Read(windows.Handle(fd), buf)
	if err != nil {
		return 0, OSError(0, err.Error())
	}
	return n, ErrorCode{}
}

func sockSend(fd int, buf []byte) (int, ErrorCode) {
	n, err := windows.Write(windows.Handle(fd), buf)
	if err != nil {
		return 0, OSError(0, err.Error())
	}
	return n, ErrorCode{}
}

func wouldBlock(ec ErrorCode) bool {
	return ec.Kind == KindOS && (ec.Code == int(windows.WSAEWOULDBLOCK) || ec.Code == int(windows.WSAEINPROGRESS))
}

func sockSetOption(fd int, option SocketOption, value bool) ErrorCode {
	switch option {
	case OptionNoDelay:
		v := 0
		if value {
			v = 1
		}
		if err := windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_TCP, windows.TCP_NODELAY, v); err != nil {
			return OSError(0, err.Error())
		}
	}
	return ErrorCode{}
}

func toWindowsSockaddr(family Family, host string, port int) (windows.Sockaddr, ErrorCode) {
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
		return &windows.SockaddrInet6{Port: port, Addr: addr}, ErrorCode{}
	}
	var addr [4]byte
	copy(addr[:], ip.To4())
	return &windows.SockaddrInet4{Port: port, Addr: addr}, ErrorCode{}
}

func sockBindListen(fd int, family Family, host string, port int, backlog int) ErrorCode {
	h := windows.Handle(fd)
	if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return OSError(0, err.Error())
	}
	sa, ec := toWindowsSockaddr(family, host, port)
	if !ec.IsZero() {
		return ec
	}
	if err := windows.Bind(h, sa); err != nil {
		return OSError(0, err.Error())
	}
	if err := windows.Listen(h, backlog); err != nil {
		return OSError(0, err.Error())
	}
	return ErrorCode{}
}

func sockAccept(fd int) (int, ErrorCode) {
	nfd, _, err := windows.Accept(windows.Handle(fd))
	if err != nil {
		return -1, OSError(0, err.Error())
	}
	if err := windows.SetNonblock(nfd, true); err != nil {
		_ = windows.Closesocket(nfd)
		return -1, OSError(0, err.Error())
	}
	return int(nfd), ErrorCode{}
}

// sockLocalPort reports the port a bound socket is actually listening on,
// resolving an ephemeral (port 0) bind via getsockname, per spec §6's
// Server.create contract.
func sockLocalPort(fd int) (int, ErrorCode) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return 0, OSError(0, err.Error())
	}
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		return a.Port, ErrorCode{}
	case *windows.SockaddrInet6:
		return a.Port, ErrorCode{}
	default:
		return 0, OSError(0, "getsockname returned an unsupported address family")
	}
}

func sockConnect(fd int, family Family, host string, port int) ErrorCode {
	sa, ec := toWindowsSockaddr(family, host, port)
	if !ec.IsZero() {
		return ec
	}
	if err := windows.Connect(windows.Handle(fd), sa); err != nil {
		return OSError(0, err.Error())
	}
	return ErrorCode{}
}
