package logger

import (
	"context"
	"log/slog"
)

// For returns a logger pre-tagged with a module name, used by the Stage
// Executor, Resource Container, and Dispatcher so every record carries its
// originating subsystem even when module-level filtering is disabled.
func For(module string) *slog.Logger {
	return defaultLogger.With("module", module)
}

func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.InfoContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.ErrorContext(ctx, msg, args...)
}

// StageStart logs entry into a pipeline stage for a single plugin.
func StageStart(stage, plugin string) {
	defaultLogger.Info("stage plugin start", "stage", stage, "plugin", plugin)
}

// StageComplete logs a plugin's successful completion of a stage.
func StageComplete(stage, plugin string) {
	defaultLogger.Info("stage plugin complete", "stage", stage, "plugin", plugin)
}

// StageFault logs a plugin or tool failure during a stage, ahead of ERROR
// dispatch.
func StageFault(stage, plugin string, errType string, err error) {
	defaultLogger.Error("stage fault", "stage", stage, "plugin", plugin, "error_type", errType, "error", err)
}
