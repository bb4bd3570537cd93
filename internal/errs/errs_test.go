package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeServer, "x"))
	assert.NoError(t, Wrapf(nil, CodeServer, "x %d", 1))
}

func TestWrapMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrapf(cause, CodeTransport, "POST %s", "/analyze")
	assert.EqualError(t, err, "POST /analyze: connection refused")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeTransport, CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	inner := New(CodeDecode, "bad json")
	outer := fmt.Errorf("analyze: %w", inner)
	assert.Equal(t, CodeDecode, CodeOf(outer))
}

func TestIs(t *testing.T) {
	err := Wrap(New(CodeServer, "500"), CodeTransport, "request failed")
	assert.True(t, Is(err, CodeServer))
	assert.True(t, Is(err, CodeTransport))
	assert.False(t, Is(err, CodeDataset))
	assert.False(t, Is(errors.New("x"), CodeServer))
}
