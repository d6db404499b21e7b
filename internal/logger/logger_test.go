package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputToFile(t *testing.T) {
	t.Cleanup(func() { SetOutput("stdout") })

	path := filepath.Join(t.TempDir(), "mdfs.log")
	SetOutput(path)

	Info("hello %s", "world")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestSetOutputBadPathFallsBack(t *testing.T) {
	t.Cleanup(func() { SetOutput("stdout") })

	// A directory cannot be opened for appending; logging must keep
	// working on stdout instead of dying at startup.
	SetOutput(t.TempDir())
	Info("still alive")
}
