package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/astrokit/pipeplan/internal/cli"
)

// newLogger builds the application's slog.Logger from the parsed options.
// It never touches the global default logger. The returned closer releases
// the --logdest file, if any.
func newLogger(opts *cli.Options, w io.Writer) (*slog.Logger, func() error, error) {
	closer := func() error { return nil }
	if opts.LogDest != "" {
		f, err := os.OpenFile(opts.LogDest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, &cli.ExitError{Code: 2, Message: fmt.Sprintf("cannot open --logdest %q: %v", opts.LogDest, err)}
		}
		w = io.MultiWriter(w, f)
		closer = f.Close
	}

	defaultLevel := parseLevel(opts.LogLevel)
	levels := make(map[string]slog.Level, len(opts.LogComponents))
	for _, c := range opts.LogComponents {
		// Later occurrences override earlier ones.
		levels[c.Name] = parseLevel(c.Level)
	}

	// The inner handler must pass everything any component threshold could
	// accept; the per-component filter sits in front of it.
	minLevel := defaultLevel
	for _, lvl := range levels {
		if lvl < minLevel {
			minLevel = lvl
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: minLevel}
	var handler slog.Handler
	if opts.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	if len(levels) > 0 {
		handler = &componentHandler{inner: handler, defaultLevel: defaultLevel, levels: levels}
	}
	return slog.New(handler), closer, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// componentKey is the attribute naming a resolution component; loggers are
// derived as logger.With(componentKey, name).
const componentKey = "component"

// componentHandler applies per-component log thresholds on top of the
// process-wide default.
type componentHandler struct {
	inner        slog.Handler
	defaultLevel slog.Level
	levels       map[string]slog.Level
	component    string
}

func (h *componentHandler) threshold() slog.Level {
	if lvl, ok := h.levels[h.component]; ok {
		return lvl
	}
	return h.defaultLevel
}

func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.threshold()
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		if a.Key == componentKey {
			next.component = a.Value.String()
		}
	}
	return &next
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.inner = h.inner.WithGroup(name)
	return &next
}
