package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

// ModuleHandler is a slog.Handler that resolves the effective log level per
// call site from a ModuleConfig and tags every record with the resolved
// module name, so "runtime.pipeline.stage" can run at debug while the rest
// of the process stays at info.
type ModuleHandler struct {
	inner  slog.Handler
	config *ModuleConfig
}

// NewModuleHandler wraps inner with module-aware level filtering.
func NewModuleHandler(inner slog.Handler, config *ModuleConfig) *ModuleHandler {
	return &ModuleHandler{inner: inner, config: config}
}

// Enabled reports whether the handler handles records at level for the
// calling module.
func (h *ModuleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.config.LevelFor(callerModule())
}

// Handle tags the record with its resolved module name and delegates.
func (h *ModuleHandler) Handle(ctx context.Context, r slog.Record) error {
	module := moduleFromPC(r.PC)
	if r.Level < h.config.LevelFor(module) {
		return nil
	}
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with attrs added to every record.
func (h *ModuleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ModuleHandler{inner: h.inner.WithAttrs(attrs), config: h.config}
}

// WithGroup returns a new handler scoped under the given group name.
func (h *ModuleHandler) WithGroup(name string) slog.Handler {
	return &ModuleHandler{inner: h.inner.WithGroup(name), config: h.config}
}

func callerModule() string {
	const maxDepth = 10
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if module := moduleFromFunction(frame.Function); module != "" && !strings.HasPrefix(module, "logger") {
			return module
		}
		if !more {
			break
		}
	}
	return ""
}

func moduleFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return moduleFromFunction(frame.Function)
}

const moduleRoot = "github.com/fractalworks/agentpipe/"

// moduleFromFunction turns a fully qualified function name like
// "github.com/fractalworks/agentpipe/runtime/pipeline.(*Executor).Run" into
// "runtime.pipeline".
func moduleFromFunction(fn string) string {
	if fn == "" {
		return ""
	}
	idx := strings.Index(fn, moduleRoot)
	if idx == -1 {
		return ""
	}
	path := fn[idx+len(moduleRoot):]
	if paren := strings.Index(path, "("); paren != -1 {
		path = path[:paren]
	}
	if dot := strings.LastIndex(path, "."); dot != -1 {
		path = path[:dot]
	}
	return strings.ReplaceAll(path, "/", ".")
}

var _ slog.Handler = (*ModuleHandler)(nil)
