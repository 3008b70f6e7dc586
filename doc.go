// Package coronet is a small single-threaded TCP networking runtime.
//
// It turns OS readiness notifications (kqueue on darwin, epoll on linux,
// WSAPoll on windows; no I/O completion port is used) into a lazy,
// pull-based stream of values consumed
// through ordinary iteration. A [Reactor] drives one kernel event loop on
// one goroutine; [Socket] and [Server] expose their I/O as an
// [AsyncGenerator], a two-party producer/consumer handshake mediated by a
// small atomic state machine (see generator.go).
//
// # Usage
//
//	r := NewReactor()
//	if ec := r.Create(); !ec.IsZero() {
//		log.Fatal(ec)
//	}
//	defer r.Close()
//
//	srv := NewServer(r)
//	if ec := srv.Create(IPv4, "127.0.0.1", 8080, 128); !ec.IsZero() {
//		log.Fatal(ec)
//	}
//
//	ctx := context.Background()
//	go func() {
//		for conn, err := range srv.Accept(ctx).All(ctx) {
//			if err != nil {
//				break
//			}
//			go echo(conn)
//		}
//	}()
//
//	r.Run(-1)
//
// # Scope
//
// This module implements the reactor, the async-generator handshake, and
// the socket/server adapters built on it. It does not implement timers,
// TLS, protocol parsing, or multi-threaded work distribution across the
// reactor — see spec.md and SPEC_FULL.md Non-goals.
package coronet
