package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// Output is where component loggers write. Console output of the demo
// commands goes to stdout, so logs default to stderr.
var Output io.Writer = os.Stderr

// NewZerologLogger creates a ZerologLogger. APP_ENV=dev selects the human
// readable console writer, anything else emits JSON lines. LOG_LEVEL sets the
// minimum level (default info).
func NewZerologLogger(component string) Logger {
	return newZerolog(Output, component, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

func newZerolog(out io.Writer, component, env, level string) *ZerologLogger {
	if strings.ToLower(env) == "dev" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(out).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
