package authstate

import (
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package.
// Messages are constant strings, args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to LoggerProvider
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return nil
	}
	return f(name)
}

// ResolveLogger picks the logger for a component. A provider wins when it
// returns a non nil logger for name, then the explicit logger, then the
// default printf logger. The returned provider always resolves to the
// returned logger for name.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if resolved := provider.GetLogger(name); resolved != nil {
			return provider, resolved
		}
	}

	if logger == nil {
		logger = defLogger{name: name}
	}

	fallback := logger
	return LoggerProviderFunc(func(string) Logger { return fallback }), fallback
}

type defLogger struct {
	name string
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args...)
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args...)
}

func (d defLogger) print(level, msg string, args ...any) {
	name := d.name
	if name == "" {
		name = "auth"
	}
	fmt.Printf("[%s] %s %s%s\n", level, strings.ToUpper(name), msg, formatArgs(args))
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger discards everything
func NoopLogger() Logger {
	return noopLogger{}
}
