// Package dccontext implements the Context component of spec §4.3: a
// single, shared configuration entity carrying the log sink/level and
// reachable from every device and parser call, plus the cancellation
// predicate type threaded through long-running operations.
package dccontext

import (
	"runtime"

	"divecomputer-go/dclog"
)

// CancelFunc is polled by long-running operations before each packet
// exchange and each sleep (spec §4.3/§5). A nil CancelFunc means the
// operation is never cancellable.
type CancelFunc func() bool

// Context is passed to device Open and carries logging configuration. It is
// shared by reference; mutation via SetLevel/SetFunc must not race other
// calls (spec §5).
type Context struct {
	logger *dclog.Logger
}

// New returns a Context with its own logger at the default level.
func New() *Context {
	return &Context{logger: dclog.New(nil)}
}

func (c *Context) SetLogLevel(level dclog.Level) { c.logger.SetLevel(level) }
func (c *Context) SetLogFunc(fn dclog.Func)       { c.logger.SetFunc(fn) }

// Logf logs at level, capturing the caller's file/line/function the way the
// C original's logging macros did.
func (c *Context) Logf(level dclog.Level, format string, args ...any) {
	if c.logger.Level() < level {
		return
	}
	pc, file, line, ok := runtime.Caller(1)
	function := "?"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			function = fn.Name()
		}
	}
	c.logger.Log(level, file, line, function, format, args...)
}

// IsCancelled evaluates fn defensively: a nil predicate never cancels.
func IsCancelled(fn CancelFunc) bool {
	return fn != nil && fn()
}
