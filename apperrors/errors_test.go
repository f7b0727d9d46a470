package apperrors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeAndMessage(t *testing.T) {
	err := fmt.Errorf("loading issue: %w", Denied("Access denied. This issue is not in your area."))

	assert.Equal(t, CodeAccessDenied, CodeOf(err))
	assert.True(t, HasCode(err, CodeAccessDenied))
	assert.Equal(t, "Access denied. This issue is not in your area.", MessageOf(err))

	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
	assert.Equal(t, "Something went wrong", MessageOf(io.EOF))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeInternal, "Failed to load issues")

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "Failed to load issues", MessageOf(err))
	assert.Contains(t, err.Error(), "unexpected EOF")
}

func TestInsufficientCredit(t *testing.T) {
	err := NewInsufficientCredit(100, 40)

	var ic *InsufficientCredit
	require.True(t, errors.As(err, &ic))
	assert.Equal(t, int64(100), ic.Required)
	assert.Equal(t, int64(40), ic.Available)
	assert.Equal(t, CodeInsufficientCredit, CodeOf(err))
}
