// Package logutil builds the process-wide logger.
package logutil

import (
	"io"
	"log/slog"
	"path/filepath"
)

// NewLogger returns a text handler logger writing to w. Source locations
// are trimmed to the file base so log lines stay short.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}
