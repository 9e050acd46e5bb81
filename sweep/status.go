package sweep

import (
	"bytes"
	"os"
)

// StatusWriter keeps the most recent error line seen on the trainer's
// stderr so a failed run surfaces a useful message instead of just an
// exit status. Everything written passes through to out.
type StatusWriter struct {
	LastErrMsg string
	out        *os.File
}

func NewStatusWriter(out *os.File) *StatusWriter {
	return &StatusWriter{out: out}
}

// Ordered so the exception line wins over the traceback header when both
// land in one write.
var errorPrefixes = []string{
	"Traceback (most recent call last):",
	"CUDA out of memory",
	"RuntimeError",
	"ValueError",
	"FileNotFoundError",
	"KeyError",
	"error:",
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	var errMsg string
	for _, prefix := range errorPrefixes {
		if _, after, ok := bytes.Cut(b, []byte(prefix)); ok {
			errMsg = prefix + string(bytes.TrimSpace(after))
		}
	}

	if errMsg != "" {
		w.LastErrMsg = errMsg
	}

	return w.out.Write(b)
}
