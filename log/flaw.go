package log

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
)

// Flaw renders err into the event. Flaws get their records, joined errors and
// stack traces expanded. Any other error is logged as a plain error field.
func Flaw(err error) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		flawErr := new(flaw.Flaw)
		if !errors.As(err, &flawErr) {
			e.Err(err)
			return
		}

		e.Dict("error", errorDict(flawErr.Inner, flawErr.InnerType, flawErr.InnerSyntaxRepr))

		records := zerolog.Arr()
		for _, v := range flawErr.Records {
			b, err := json.MarshalWithOption(v.Payload, json.UnorderedMap(), json.DisableNormalizeUTF8(), json.DisableHTMLEscape())
			if nil != err {
				records.Dict(
					zerolog.
						Dict().
						Str("function", v.Function).
						Dict("payload", zerolog.Dict().Str("error", err.Error()).Str("raw", fmt.Sprintf("%#+v", v.Payload))),
				)
				continue
			}
			records.Dict(zerolog.Dict().Str("function", v.Function).RawJSON("payload", b))
		}
		e.Array("records", records)

		joined := zerolog.Arr()
		for _, v := range flawErr.JoinedErrors {
			d := zerolog.Dict().Dict("error", errorDict(v.Message, v.TypeName, v.SyntaxRepr))
			if st := v.CallerStackTrace; nil != st {
				d.Dict("caller_stack_trace", stackTraceDict(st.File, st.Line, st.Function))
			} else {
				d.Stringer("caller_stack_trace", nil)
			}
			joined.Dict(d)
		}
		e.Array("joined_errors", joined)

		stackTraces := zerolog.Arr()
		for _, v := range flawErr.StackTrace {
			stackTraces.Dict(stackTraceDict(v.File, v.Line, v.Function))
		}
		e.Array("stack_traces", stackTraces)
	}
}

func errorDict(message, typeName, syntaxRepr string) *zerolog.Event {
	return zerolog.
		Dict().
		Str("message", message).
		Str("type_name", typeName).
		Str("syntax_representation", syntaxRepr)
}

func stackTraceDict(file string, line int, function string) *zerolog.Event {
	return zerolog.
		Dict().
		Str("location", fmt.Sprintf("%s:%d", file, line)).
		Str("function", function)
}
