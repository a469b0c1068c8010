package testsupport

import (
	"io"
	"log/slog"
	"testing"
)

// NewLogger returns a logger that discards output.
func NewLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
