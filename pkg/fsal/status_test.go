package fsal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := Errorf(ErrNotFound, "no such object %q", "file.txt")
	assert.Equal(t, `NOT_FOUND: no such object "file.txt"`, err.Error())

	assert.Equal(t, "STALE", Errorf(ErrStale, "").Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrStale, CodeOf(Errorf(ErrStale, "gone")))
	assert.Equal(t, ErrorCode(0), CodeOf(nil))
	assert.Equal(t, ErrorCode(0), CodeOf(errors.New("foreign error")))

	// Wrapped errors still carry their code.
	wrapped := fmt.Errorf("context: %w", Errorf(ErrDelay, "busy"))
	assert.Equal(t, ErrDelay, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrDelay))
}

func TestIsStale(t *testing.T) {
	assert.True(t, IsStale(Errorf(ErrStale, "")))
	assert.True(t, IsStale(Errorf(ErrHandleExpired, "")))
	assert.False(t, IsStale(Errorf(ErrDelay, "")))
	assert.False(t, IsStale(nil))
}

func TestConvertStatus(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{Errorf(ErrNotFound, ""), StatusNotFound},
		{Errorf(ErrExists, ""), StatusExists},
		{Errorf(ErrAccessDenied, ""), StatusAccessDenied},
		{Errorf(ErrPermDenied, ""), StatusPermDenied},
		{Errorf(ErrStale, ""), StatusStale},
		{Errorf(ErrHandleExpired, ""), StatusStale},
		{Errorf(ErrDelay, ""), StatusDelay},
		{Errorf(ErrNotDirectory, ""), StatusNotDirectory},
		{Errorf(ErrIsDirectory, ""), StatusIsDirectory},
		{Errorf(ErrNotEmpty, ""), StatusNotEmpty},
		{Errorf(ErrXDev, ""), StatusXDev},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConvertStatus(tt.err), "error %v", tt.err)
	}
}

func TestConvertStatusUnmappableBecomesInternalFault(t *testing.T) {
	// Not-opened is an internal protocol between cache and backends and
	// must never leak to clients as-is.
	assert.Equal(t, StatusInternalFault, ConvertStatus(Errorf(ErrNotOpened, "")))
	assert.Equal(t, StatusInternalFault, ConvertStatus(Errorf(ErrFault, "")))
	assert.Equal(t, StatusInternalFault, ConvertStatus(errors.New("foreign")))
}
