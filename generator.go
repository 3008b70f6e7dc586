package coronet

import (
	"context"
	"fmt"
	"sync/atomic"
)

// genState is one of the five states of the async-generator handshake
// described in spec §4.6.
type genState int32

const (
	// genVNRCA: Value Not Ready, Consumer Active — the consumer has
	// requested the next value and is running the request path.
	genVNRCA genState = iota
	// genVNRCS: Value Not Ready, Consumer Suspended — the consumer has
	// parked waiting for a value.
	genVNRCS
	// genVRPA: Value Ready, Producer Active — the producer just yielded
	// and is running the yield path.
	genVRPA
	// genVRPS: Value Ready, Producer Suspended — a value (or end-of-stream)
	// sits in the frame and the producer is parked waiting for the next
	// pull. This is also the conceptual initial state.
	genVRPS
	// genCancelled is terminal; no transition leaves it.
	genCancelled
)

// Yield is the function passed to an AsyncGenerator's producer body. It
// delivers one value to the consumer and blocks until either the consumer
// asks for the next one or the generator is cancelled. It returns false
// when the producer should stop (the generator was cancelled); the
// producer must return promptly when it does.
type Yield[T any] func(value T) bool

// AsyncGenerator is the two-party suspendable stream described in spec
// §4.6: a producer yields values one at a time, handing off control to a
// suspendable consumer. It is the core primitive this module builds
// Socket.Recv and Server.Accept on top of.
//
// Go has no stackful coroutines to suspend, so the producer here runs on
// its own goroutine (the "producer frame"); suspension is modelled as a
// parked goroutine blocked on a dedicated wake channel, gated by the exact
// atomic state machine spec §4.6 specifies — not a buffered channel of
// values, which would lose the single-delivery handoff semantics and the
// "exactly one party runs at a time" invariant. See DESIGN.md for the two
// resolved ambiguities this introduces relative to the reference
// coroutine implementation's synchronous inline resume.
type AsyncGenerator[T any] struct {
	state atomic.Int32

	// current_value / exception, per spec §3: owned exclusively by
	// whichever party is "active" between a CAS that hands off control and
	// the next one, so plain (non-atomic) fields are safe here.
	value    T
	hasValue bool
	err      error

	producerWake chan struct{}
	consumerWake chan struct{}

	body    func(yield Yield[T]) error
	started atomic.Bool
}

// NewAsyncGenerator constructs a generator whose producer runs body when
// the consumer first advances it. body must call yield for each value and
// return when it either finishes normally (nil) or fails (non-nil error,
// captured and rethrown to the consumer per spec §4.6 "Exception
// handling"). body must stop calling yield, and return, as soon as yield
// returns false.
func NewAsyncGenerator[T any](body func(yield Yield[T]) error) *AsyncGenerator[T] {
	g := &AsyncGenerator[T]{
		producerWake: make(chan struct{}, 1),
		consumerWake: make(chan struct{}, 1),
		body:         body,
	}
	g.state.Store(int32(genVRPS))
	return g
}

func (g *AsyncGenerator[T]) ensureStarted() {
	if g.started.CompareAndSwap(false, true) {
		go g.run()
	}
}

// run is the producer goroutine: it waits to be resumed (the coroutine
// initial_suspend point), then drives body to completion, delivering a
// final end-of-stream handoff (with any captured error) when it returns.
// It then stays parked at that final suspend point, answering every later
// advance with end-of-stream, until the generator is cancelled.
func (g *AsyncGenerator[T]) run() {
	defer func() {
		if r := recover(); r != nil {
			g.err = fmt.Errorf("coronet: generator panic: %v", r)
		}
		g.hasValue = false
		for g.publish() {
		}
	}()

	g.parkProducer()
	if genState(g.state.Load()) == genCancelled {
		return
	}

	g.err = g.body(func(v T) bool {
		g.value = v
		g.hasValue = true
		return g.publish()
	})
}

// publish performs the producer-side half of the handshake (spec §4.6
// "Yield"/"Return"): the value (or end-of-stream) has already been stored
// into g.value/g.hasValue/g.err by the caller. It returns true if the
// producer should keep running (compute and publish the next value), false
// if it must stop immediately.
func (g *AsyncGenerator[T]) publish() bool {
	for {
		s := genState(g.state.Load())
		switch s {
		case genVNRCS:
			if g.state.CompareAndSwap(int32(genVNRCS), int32(genVRPA)) {
				g.wakeConsumer()
			}
			// Loop back and re-read: the consumer may race ahead and
			// re-park (observe VNRCS again) before it has actually taken
			// delivery via the VRPS/takeValue path below — retry the
			// handoff rather than assuming an inline delivery happened,
			// since (unlike the reference implementation's synchronous
			// coroutine resume) producer and consumer here are
			// independently scheduled goroutines. See DESIGN.md.
		case genVRPA, genVNRCA:
			// See DESIGN.md: genVNRCA is handled identically to genVRPA
			// here — both mean "the opposing party has not parked yet".
			if g.state.CompareAndSwap(int32(s), int32(genVRPS)) {
				g.parkProducer()
				return genState(g.state.Load()) != genCancelled
			}
		case genCancelled:
			return false
		}
	}
}

func (g *AsyncGenerator[T]) wakeProducer() {
	select {
	case g.producerWake <- struct{}{}:
	default:
	}
}

func (g *AsyncGenerator[T]) wakeConsumer() {
	select {
	case g.consumerWake <- struct{}{}:
	default:
	}
}

func (g *AsyncGenerator[T]) parkProducer() {
	<-g.producerWake
}

// Next is the consumer-side "Advance" operation (spec §4.6). It blocks
// until the producer either yields a value (ok=true), ends the stream
// (ok=false, err is any captured producer failure), or ctx is done. It
// must not be called concurrently with another in-flight Next on the same
// generator.
//
// If ctx is done while Next is parked waiting on the producer, Next
// returns immediately with ctx.Err(); the generator's internal state may
// transiently remain "consumer suspended" until the producer's next
// yield or return observes it and moves on. A caller that aborts Next via
// ctx this way must not call Cancel immediately afterwards (it may
// observe the same transient state and panic per Cancel's precondition);
// let the reactor/producer teardown reclaim it instead, matching spec
// §5's accepted "forced reactor shutdown leaks in-flight waiters" leak.
func (g *AsyncGenerator[T]) Next(ctx context.Context) (value T, ok bool, err error) {
	g.ensureStarted()

	if !g.state.CompareAndSwap(int32(genVRPS), int32(genVNRCA)) {
		var zero T
		return zero, false, fmt.Errorf("coronet: AsyncGenerator.Next called while a previous call is still in flight")
	}
	g.wakeProducer()

	for {
		s := genState(g.state.Load())
		switch s {
		case genVRPS:
			return g.takeValue()
		case genVNRCA, genVRPA:
			if g.state.CompareAndSwap(int32(s), int32(genVNRCS)) {
				select {
				case <-g.consumerWake:
				case <-ctx.Done():
					var zero T
					return zero, false, ctx.Err()
				}
			}
		case genCancelled:
			var zero T
			return zero, false, Cancelled
		}
	}
}

func (g *AsyncGenerator[T]) takeValue() (T, bool, error) {
	if g.hasValue {
		v := g.value
		var zero T
		g.value = zero
		g.hasValue = false
		return v, true, nil
	}
	err := g.err
	g.err = nil
	var zero T
	return zero, false, err
}

// Cancel is the consumer-side destructor (spec §4.6): it marks the
// generator terminal and wakes the producer so it observes cancellation at
// its next yield/return and stops. Calling Cancel while a Next call on the
// same generator is in flight (from another goroutine) is a precondition
// violation, matching spec §4.6 ("the consumer cannot destroy a generator
// while it is itself suspended in an advance") and panics without changing
// the generator's state; callers that need to abort a pending Next should
// cancel its context instead.
func (g *AsyncGenerator[T]) Cancel() {
	for {
		prev := genState(g.state.Load())
		if prev == genVNRCS {
			panic("coronet: AsyncGenerator.Cancel called while a consumer Next is in flight")
		}
		if g.state.CompareAndSwap(int32(prev), int32(genCancelled)) {
			break
		}
	}
	g.wakeProducer()
}

// All adapts the generator to Go's range-over-func iteration, the
// "ordinary iteration" mentioned in spec §1. Iteration stops either when
// the producer ends the stream or when yield returns false (the caller
// broke out of the range); in both cases the generator is then cancelled,
// unless iteration stopped because ctx was done.
func (g *AsyncGenerator[T]) All(ctx context.Context) func(yield func(T, error) bool) {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := g.Next(ctx)
			if !ok {
				if err != nil {
					yield(v, err)
				}
				if ctx.Err() == nil {
					// Natural end (possibly with a captured producer
					// error): the producer has already parked at its
					// final suspend point (see publish, above), and
					// needs to be torn down same as an early break
					// below — Go has no destructor to do this for us
					// when the generator value goes out of scope.
					g.Cancel()
				}
				return
			}
			if !yield(v, nil) {
				g.Cancel()
				return
			}
		}
	}
}
