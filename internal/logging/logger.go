// Package logging holds the process-wide structured logger plus the sqlite
// activity audit log. Components write through the stdlib logger with a
// bracketed prefix ("[Backup] message"); the bridge lifts that prefix into a
// component attribute on the structured record.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Adlikkk/gamehost-one/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	logger  *slog.Logger
	rotator *lumberjack.Logger
)

// Init configures the process-wide logger from cfg and routes the stdlib
// logger through it. Calling Init again replaces the previous sink after
// closing its rotation handle.
func Init(cfg config.LoggingConfig) (*slog.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}

	sink := io.Writer(os.Stdout)
	if strings.TrimSpace(cfg.File) != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		sink = io.MultiWriter(os.Stdout, rotator)
	}

	opts := &slog.HandlerOptions{Level: levelFor(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(sink, opts)
	} else {
		handler = slog.NewJSONHandler(sink, opts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
	log.SetFlags(0)
	log.SetOutput(componentBridge{logger: logger})
	return logger, nil
}

// L returns the configured logger. Before Init it discards everything, which
// keeps library code free of nil checks.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return logger
}

// Close releases the log file's rotation handle.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// componentBridge adapts the stdlib logger onto slog, splitting the
// "[Component] message" convention used throughout this codebase.
type componentBridge struct {
	logger *slog.Logger
}

func (b componentBridge) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}
	component, rest := splitComponent(msg)
	if component != "" {
		b.logger.Info(rest, "component", component)
	} else {
		b.logger.Info(msg)
	}
	return len(p), nil
}

// splitComponent separates a leading "[Component] " prefix from the message.
// Messages without the prefix come back with an empty component.
func splitComponent(msg string) (string, string) {
	if !strings.HasPrefix(msg, "[") {
		return "", msg
	}
	end := strings.Index(msg, "] ")
	if end < 1 {
		return "", msg
	}
	return msg[1:end], msg[end+2:]
}

func levelFor(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
