package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog logger writing to stdout. pretty selects the
// console writer; otherwise records are emitted as JSON lines.
func NewLogger(level string, pretty bool) (zerolog.Logger, error) {
	return newLogger(os.Stdout, level, pretty)
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(out io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	return newLogger(out, level, pretty)
}

// zerolog keeps the caller formatter in a package global, so it is installed
// once no matter how many loggers are built.
var callerFormat sync.Once

func installCallerFormat() {
	zerolog.CallerMarshalFunc = shortCaller
}

// shortCaller renders file:line without the directory, padded to 24 columns.
func shortCaller(pc uintptr, file string, line int) string {
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%-24s", fmt.Sprintf("%s:%d", short, line))
}

func newLogger(out io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	callerFormat.Do(installCallerFormat)
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	logger := zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
	return logger, nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", level, err)
	}
	return lvl, nil
}
