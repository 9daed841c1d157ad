// Package logging provides the shared structured logger used across polirag.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

var (
	defaultOnce   sync.Once
	defaultLogger *slog.Logger
)

// Default returns the process-wide JSON-stdout logger, matching the
// slog.New(slog.NewJSONHandler(os.Stdout, nil)) convention used throughout
// this codebase's component constructors.
func Default() *slog.Logger {
	defaultOnce.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	})
	return defaultLogger
}

// Named returns the default logger tagged with a "component" attribute.
func Named(component string) *slog.Logger {
	return Default().With("component", component)
}
