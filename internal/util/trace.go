package util

import (
	"errors"
	"fmt"
	"strings"
)

// TraceText renders err and its full causal chain as a single line of
// human-readable text. Each cause is unwrapped in order and rendered as
// "<type>(<message>)", joined by " <- " from effect to root cause.
//
// The result is intended for diagnostic payloads sent to a peer (e.g.
// GOAWAY debug data), so it deliberately contains no stack frames or
// file positions, only the error chain itself.
func TraceText(err error) string {
	if err == nil {
		return ""
	}

	var buf strings.Builder
	for depth := 0; err != nil; depth++ {
		if depth > 0 {
			buf.WriteString(" <- ")
		}
		buf.WriteString(fmt.Sprintf("%T(%s)", err, err.Error()))

		next := errors.Unwrap(err)
		if next == err {
			break
		}
		err = next
	}
	return buf.String()
}
