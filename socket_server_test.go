package coronet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestReactor creates and starts a Reactor on its own goroutine, and
// registers a cleanup that closes it and waits for Run to return.
func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r := NewReactor()
	require.True(t, r.Create().IsZero())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(0)
	}()
	t.Cleanup(func() {
		r.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("reactor Run did not return after Close")
		}
	})
	return r
}

// listenAndDial starts a listener on an OS-assigned ephemeral port and
// connects a client socket to it, returning the server, the accepted
// connection, and the client. It is the shared setup for the echo (S1) and
// peer-close (S2) scenarios.
func listenAndDial(t *testing.T, ctx context.Context, r *Reactor) (srv *Server, conn *Socket, client *Socket) {
	t.Helper()
	srv = NewServer(r)
	require.True(t, srv.Create(IPv4, "127.0.0.1", 0, 128).IsZero())

	accepted := make(chan *Socket, 1)
	go func() {
		for c, err := range srv.Accept(ctx).All(ctx) {
			if err != nil {
				return
			}
			accepted <- c
			return
		}
	}()

	client = NewSocket(r)
	require.True(t, client.Create(IPv4, TCP).IsZero())
	require.True(t, client.Connect(ctx, IPv4, "127.0.0.1", srv.Port()).IsZero())

	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept connection")
	}
	return srv, conn, client
}

// TestSocketEcho1KiB is S1: a client writes 1 KiB, the server's accepted
// connection echoes it back byte-for-byte.
func TestSocketEcho1KiB(t *testing.T) {
	r := newTestReactor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv, conn, client := listenAndDial(t, ctx, r)
	defer srv.Stop()
	defer conn.Close()
	defer client.Close()

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte('0' + i%10)
	}

	sendFut := client.Send(ctx, payload)
	ec, err := sendFut.Wait(ctx)
	require.NoError(t, err)
	require.True(t, ec.IsZero())

	serverBuf := make([]byte, len(payload))
	recv := conn.Recv(ctx, serverBuf)
	defer recv.Cancel()
	received := 0
	for received < len(payload) {
		n, ok, err := recv.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		echoFut := conn.Send(ctx, serverBuf[:n])
		ec, err := echoFut.Wait(ctx)
		require.NoError(t, err)
		require.True(t, ec.IsZero())
		received += n
	}

	clientBuf := make([]byte, len(payload))
	clientRecv := client.Recv(ctx, clientBuf)
	defer clientRecv.Cancel()
	total := 0
	for total < len(payload) {
		n, ok, err := clientRecv.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		total += n
	}
	require.Equal(t, payload, clientBuf)
}

// TestSocketPeerCloseEOF is S2: the client sends "hello" then closes;
// the server's Recv generator yields "hello" then ends with LastError()
// reporting Eof.
func TestSocketPeerCloseEOF(t *testing.T) {
	r := newTestReactor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv, conn, client := listenAndDial(t, ctx, r)
	defer srv.Stop()
	defer conn.Close()

	sendFut := client.Send(ctx, []byte("hello"))
	ec, err := sendFut.Wait(ctx)
	require.NoError(t, err)
	require.True(t, ec.IsZero())
	require.True(t, client.Close().IsZero())

	buf := make([]byte, 64)
	recv := conn.Recv(ctx, buf)
	defer recv.Cancel()

	n, ok, err := recv.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(buf[:n]))

	_, ok, err = recv.Next(ctx)
	require.False(t, ok)
	require.ErrorIs(t, err, Eof)
	require.Equal(t, Eof, conn.LastError())
}

// TestSocketBurstSend64MiB is S6: a client sends 64 MiB in one Send call,
// the server echoes it back, and the client receives exactly 64 MiB
// byte-identical to what it sent.
func TestSocketBurstSend64MiB(t *testing.T) {
	r := newTestReactor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	srv, conn, client := listenAndDial(t, ctx, r)
	defer srv.Stop()
	defer conn.Close()
	defer client.Close()

	const size = 64 << 20
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}

	echoDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 64<<10)
		recv := conn.Recv(ctx, buf)
		defer recv.Cancel()
		total := 0
		for total < size {
			n, ok, err := recv.Next(ctx)
			if !ok {
				echoDone <- err
				return
			}
			fut := conn.Send(ctx, buf[:n])
			if ec, err := fut.Wait(ctx); err != nil {
				echoDone <- err
				return
			} else if !ec.IsZero() {
				echoDone <- ec
				return
			}
			total += n
		}
		echoDone <- nil
	}()

	sendDone := make(chan error, 1)
	go func() {
		fut := client.Send(ctx, payload)
		ec, err := fut.Wait(ctx)
		if err != nil {
			sendDone <- err
			return
		}
		if !ec.IsZero() {
			sendDone <- ec
			return
		}
		sendDone <- nil
	}()

	received := make([]byte, size)
	off := 0
	recvBuf := make([]byte, 64<<10)
	clientRecv := client.Recv(ctx, recvBuf)
	defer clientRecv.Cancel()
	for off < size {
		n, ok, err := clientRecv.Next(ctx)
		require.Truef(t, ok, "client recv ended early: %v", err)
		copy(received[off:], recvBuf[:n])
		off += n
	}

	require.NoError(t, <-sendDone)
	require.NoError(t, <-echoDone)
	require.Equal(t, payload, received)
}

// TestServerAcceptAndStop is S3: Stop() ends an in-flight Accept
// generator instead of hanging it forever.
func TestServerAcceptAndStop(t *testing.T) {
	r := newTestReactor(t)

	srv := NewServer(r)
	require.True(t, srv.Create(IPv4, "127.0.0.1", 0, 128).IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	accept := srv.Accept(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok, _ := accept.Next(ctx)
		require.False(t, ok)
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, srv.Stop().IsZero())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not end after Stop")
	}
	accept.Cancel()
}

// TestSocketCreateCloseLastError exercises the non-generator parts of the
// Socket lifecycle: Create, Close, and LastError bookkeeping.
func TestSocketCreateCloseLastError(t *testing.T) {
	r := newTestReactor(t)
	s := NewSocket(r)
	require.True(t, s.LastError().IsZero())

	require.True(t, s.Create(IPv4, TCP).IsZero())
	require.True(t, s.Set(OptionNoDelay, true).IsZero())
	require.True(t, s.Close().IsZero())
}

// TestServerCreateInvalidAddress exercises the Create error path: binding
// to an address that cannot be resolved/bound must report a non-zero
// ErrorCode and leave the server safely unusable rather than panicking.
func TestServerCreateInvalidAddress(t *testing.T) {
	r := newTestReactor(t)
	srv := NewServer(r)
	ec := srv.Create(IPv4, "256.256.256.256", 0, 128)
	require.False(t, ec.IsZero())
}

// TestServerPortResolvesEphemeralBind exercises Port() directly: Create
// with port 0 must resolve to the OS-assigned ephemeral port, not 0.
func TestServerPortResolvesEphemeralBind(t *testing.T) {
	r := newTestReactor(t)
	srv := NewServer(r)
	require.True(t, srv.Create(IPv4, "127.0.0.1", 0, 128).IsZero())
	defer srv.Stop()
	require.NotZero(t, srv.Port())
}
