package coronet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeZeroValue(t *testing.T) {
	var ec ErrorCode
	assert.True(t, ec.IsZero())
	assert.Equal(t, "", ec.Error())
}

func TestErrorCodeSentinels(t *testing.T) {
	assert.Equal(t, KindEof, Eof.Kind)
	assert.Equal(t, -1, Eof.Code)
	assert.Equal(t, KindCancelled, Cancelled.Kind)
	assert.Equal(t, -2, Cancelled.Code)
	assert.False(t, Eof.IsZero())
}

func TestErrorCodeIs(t *testing.T) {
	a := OSError(2, "No such file or directory")
	b := OSError(2, "No such file or directory (ENOENT)")
	assert.True(t, errors.Is(a, b), "Is compares by (Kind, Code), not message text")

	assert.True(t, errors.Is(Eof, Eof))
	assert.False(t, errors.Is(Eof, Cancelled))
}

func TestErrorCodeMessageLowercased(t *testing.T) {
	ec := OSError(13, "Permission Denied")
	assert.Contains(t, ec.Error(), "permission denied")
	assert.NotContains(t, ec.Error(), "Permission Denied")
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError(nil).IsZero())

	ec := FromError(Eof)
	assert.Equal(t, Eof, ec)

	wrapped := errors.Join(errors.New("context"), Cancelled)
	assert.Equal(t, Cancelled, FromError(wrapped))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, KindOS, plain.Kind)
	assert.Contains(t, plain.Error(), "boom")
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		KindNone:      "none",
		KindEof:       "eof",
		KindCancelled: "cancelled",
		KindOS:        "os",
		KindAddr:      "addr",
		ErrorKind(99): "unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
