package log

import (
	"bytes"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Panic renders a recovered value along with the stack of the recovering
// goroutine, skipping the frames of the recovery machinery itself.
func Panic(thing any) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		dict := zerolog.Dict().Any("content", thing)
		lines := bytes.Split(debug.Stack(), []byte("\n"))
		if len(lines) > 9 {
			lines = lines[9:]
		}
		dict.Bytes("stack_traces", bytes.Join(lines, []byte("\n")))
		e.Dict("panic", dict)
	}
}
