package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// AppLogFileName is the application log inside the configured log
// directory.
const AppLogFileName = "deadwax.log"

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
}

// levelNames maps accepted config spellings to slog levels. Unknown
// spellings fall back to info.
var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := slog.LevelInfo
	if parsed, ok := levelNames[strings.ToLower(strings.TrimSpace(opts.Level))]; ok {
		level = parsed
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	sink, err := combinedSink(opts.OutputPaths, opts.ErrorOutputPaths)
	if err != nil {
		return nil, err
	}
	withSource := opts.Development || level <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		return slog.New(newJSONHandler(sink, levelVar, withSource)), nil
	case "console", "":
		return slog.New(newConsoleHandler(sink, levelVar, withSource)), nil
	default:
		return nil, fmt.Errorf("unrecognized log format %q", opts.Format)
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags every record from the returned logger with the
// given component name. A nil base falls back to the no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// combinedSink opens every named output once and fans writes across them.
// The names stdout and stderr select the process streams; any other name
// is a file path opened append-only, parent directory created as needed.
// With no usable names at all, records go to stdout.
func combinedSink(outputs, errorOutputs []string) (io.Writer, error) {
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	if len(errorOutputs) == 0 {
		errorOutputs = []string{"stderr"}
	}

	var sinks []io.Writer
	opened := make(map[string]bool)
	for _, name := range append(append([]string(nil), outputs...), errorOutputs...) {
		name = strings.TrimSpace(name)
		if name == "" || opened[name] {
			continue
		}
		opened[name] = true
		w, err := openSink(name)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}

	switch len(sinks) {
	case 0:
		return os.Stdout, nil
	case 1:
		return sinks[0], nil
	}
	return io.MultiWriter(sinks...), nil
}

func openSink(name string) (io.Writer, error) {
	switch name {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory for %s: %w", name, err)
		}
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log sink %s: %w", name, err)
	}
	return f, nil
}
