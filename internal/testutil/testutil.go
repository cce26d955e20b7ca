// Package testutil provides test helpers shared by modconsole packages.
//
//   - assert.go: assertion helpers (MustNoErr, AssertIDs, AssertContainsAll)
//   - fs_helpers.go: filesystem operations (WriteFile, ReadFile, MustExist)
//   - ptr: pointer helpers for optional criteria fields
package testutil

import (
	"io"
	"log/slog"
	"testing"
)

// Logger returns a logger that discards output, or writes to the test log
// when tests run with -v.
func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(t.Output(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
