// Package logger defines the logging seam used across paygate. Components
// take the Logger interface so callers can plug zap, a test recorder, or
// nothing at all.
package logger

// Logger is a minimal leveled structured logger.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Noop discards everything. It is the default when no logger is configured.
type Noop struct{}

func (Noop) Debug(string, map[string]any) {}
func (Noop) Info(string, map[string]any)  {}
func (Noop) Warn(string, map[string]any)  {}
func (Noop) Error(string, map[string]any) {}
