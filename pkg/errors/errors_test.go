package errors

import (
	stderrors "errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTypeWalksChain(t *testing.T) {
	inner := New(ErrorTypeResourceExhausted, "spill volume full")
	outer := Wrap(inner, ErrorTypeInternal, "sort failed")

	assert.True(t, IsType(outer, ErrorTypeInternal))
	assert.True(t, IsType(outer, ErrorTypeResourceExhausted))
	assert.False(t, IsType(outer, ErrorTypeWrite))
	assert.Equal(t, ErrorTypeInternal, TypeOf(outer))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeSchema, "bad")
	outer := Wrap(inner, ErrorTypeSchema, "row 7")
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Nil(t, Wrap(nil, ErrorTypeWrite, "noop"))
}

func TestWrapForeignError(t *testing.T) {
	err := Wrap(fmt.Errorf("write: %w", syscall.ENOSPC), ErrorTypeWrite, "commit")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, syscall.ENOSPC))
	assert.NotEmpty(t, err.Stack)
	assert.Equal(t, "write: commit: write: no space left on device", err.Error())
}

func TestDetails(t *testing.T) {
	err := Newf(ErrorTypePrecision, "scale %d exceeds %d", 20, 18).WithDetail("column", "sharePrice")
	v, ok := err.Detail("column")
	assert.True(t, ok)
	assert.Equal(t, "sharePrice", v)
	_, ok = err.Detail("missing")
	assert.False(t, ok)
	assert.Equal(t, "precision: scale 20 exceeds 18", err.Error())
}
