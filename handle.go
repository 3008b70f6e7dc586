package coronet

import "fmt"

// invalidDescriptor is the sentinel reported by an empty [Handle],
// including the zero value.
const invalidDescriptor = -1

// Handle is a move-only owning wrapper over an OS descriptor (a file
// descriptor on unix, a SOCKET/HANDLE value on windows), modelled as an
// int64 so a single type serves both. Exactly one live [Handle] owns a
// given descriptor at a time; closing it invokes closeFunc, which must be
// non-failing and idempotent (closeFunc is only ever invoked once, on a
// valid descriptor, by [Handle.Close] or [Handle.Reset]).
//
// Handle is not safe for concurrent use: ownership transfer (Reset,
// Release, Close) from multiple goroutines on the same Handle is a race,
// matching the single-owner invariant of spec §3.
type Handle struct {
	value     int64
	valid     bool
	closeFunc func(int64) error
}

// NewHandle wraps an existing descriptor, taking ownership of it. close is
// invoked at most once, when the handle is later closed or reset while
// valid; it must not fail and must be safe to treat as a no-op if called
// again (Handle itself guarantees it is called at most once).
func NewHandle(descriptor int64, close func(int64) error) Handle {
	return Handle{value: descriptor, valid: descriptor != invalidDescriptor, closeFunc: close}
}

// Valid reports whether h owns a live descriptor.
func (h *Handle) Valid() bool {
	return h.valid
}

// Value returns the raw descriptor, or the invalid sentinel if h is empty.
func (h *Handle) Value() int64 {
	if !h.valid {
		return invalidDescriptor
	}
	return h.value
}

// Reset closes any descriptor currently owned by h (via closeFunc) and
// replaces it with descriptor (which may be the invalid sentinel),
// adopting close as the new closer.
func (h *Handle) Reset(descriptor int64, close func(int64) error) error {
	if err := h.Close(); err != nil {
		return err
	}
	h.value = descriptor
	h.valid = descriptor != invalidDescriptor
	h.closeFunc = close
	return nil
}

// Release relinquishes ownership of the descriptor without closing it,
// returning its value. After Release, h is empty.
func (h *Handle) Release() int64 {
	v := h.Value()
	h.value = invalidDescriptor
	h.valid = false
	h.closeFunc = nil
	return v
}

// Close closes the owned descriptor, if any, and empties h. Close is
// idempotent: calling it on an already-empty Handle is a no-op.
func (h *Handle) Close() error {
	if !h.valid {
		return nil
	}
	v := h.value
	closeFunc := h.closeFunc
	h.value = invalidDescriptor
	h.valid = false
	h.closeFunc = nil
	if closeFunc == nil {
		return nil
	}
	return closeFunc(v)
}

// String formats the descriptor as a fixed-width hex integer, matching the
// diagnostic-log formatting hook described in spec §4.1.
func (h Handle) String() string {
	return fmt.Sprintf("%016X", uint64(h.value))
}
