package log

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/pretty"

	"github.com/xeptore/spotwrap/constant"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func newBaseLogger() zerolog.Logger {
	return zerolog.
		New(io.Discard).
		With().
		Dict(
			"app",
			zerolog.
				Dict().
				Str("version", constant.Version).
				Str("compilation_time", constant.CompileTime.Format(time.RFC3339)),
		).
		Timestamp().
		Logger().
		Level(zerolog.TraceLevel)
}

// NewPretty returns a logger writing colorized, indented JSON lines. Meant
// for terminals.
func NewPretty(w io.Writer) zerolog.Logger {
	return newBaseLogger().Output(newPrettyWriter(w))
}

// NewPacked returns a logger writing one compact JSON object per line.
func NewPacked(w io.Writer) zerolog.Logger {
	return newBaseLogger().Output(w)
}

// New picks the pretty or packed flavor and applies level. Unknown level
// names fall back to info.
func New(w io.Writer, prettify bool, level string) zerolog.Logger {
	var logger zerolog.Logger
	if prettify {
		logger = NewPretty(w)
	} else {
		logger = NewPacked(w)
	}
	lvl, err := zerolog.ParseLevel(level)
	if nil != err || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

func newPrettyWriter(out io.Writer) prettyWriter {
	return prettyWriter{out}
}

type prettyWriter struct {
	out io.Writer
}

func (p prettyWriter) Write(line []byte) (int, error) {
	if n, err := p.out.Write(pretty.Color(pretty.Pretty(line), nil)); nil != err {
		return n, err
	}
	return len(line), nil
}
