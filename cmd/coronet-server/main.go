// Command coronet-server is a minimal echo server, a direct port of
// original_source/src/coronet_server.cpp: it accepts connections and
// echoes back whatever each peer sends until the peer disconnects.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joeycumines/stumpy"
	"github.com/qis/coronet"
)

func main() {
	host := "127.0.0.1"
	port := 8080
	bufferSize := 40960

	args := os.Args[1:]
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "coronet-server: invalid port %q\n", args[1])
			os.Exit(1)
		}
		port = p
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "coronet-server: invalid buffer size %q\n", args[2])
			os.Exit(1)
		}
		bufferSize = n
	}

	logger := coronet.NewLogger(stumpy.WithWriter(os.Stderr))

	reactor := coronet.NewReactor(coronet.WithLogger(logger))
	if ec := reactor.Create(); !ec.IsZero() {
		fmt.Fprintln(os.Stderr, "coronet-server:", ec.Error())
		os.Exit(1)
	}

	srv := coronet.NewServer(reactor, coronet.WithLogger(logger))
	if ec := srv.Create(coronet.IPv4, host, port, 128); !ec.IsZero() {
		fmt.Fprintln(os.Stderr, "coronet-server:", ec.Error())
		os.Exit(1)
	}

	coronet.Signal(syscall.SIGINT, func() {
		srv.Stop()
		reactor.Close()
	})
	defer coronet.ResetSignal(syscall.SIGINT)

	go func() {
		_ = reactor.Run(0)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer cancel()

	fmt.Printf("%s:%d\n", host, port)

	for conn, err := range srv.Accept(ctx).All(ctx) {
		if err != nil {
			break
		}
		go handle(ctx, conn, bufferSize, logger)
	}

	fmt.Println("server stopped")
}

// handle echoes data from conn back to itself until the peer disconnects,
// mirroring coronet_server.cpp's handle() coroutine.
func handle(ctx context.Context, conn *coronet.Socket, bufferSize int, logger *coronet.Logger) {
	defer conn.Close()
	conn.Set(coronet.OptionNoDelay, true)

	buf := make([]byte, bufferSize)
	for n, err := range conn.Recv(ctx, buf).All(ctx) {
		if err != nil {
			break
		}
		fut := conn.Send(ctx, buf[:n])
		if ec, waitErr := fut.Wait(ctx); waitErr != nil || !ec.IsZero() {
			break
		}
	}
}
