// Package monitoring holds the diagnostic logger and the Prometheus
// collectors shared by the trace readers, the reconstructor and the
// aggregator.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests mute it; commands can prefix it per subcommand.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// WithPrefix returns a logger that prepends prefix to every message and
// forwards to the current Logf.
func WithPrefix(prefix string) func(format string, v ...interface{}) {
	next := Logf
	return func(format string, v ...interface{}) {
		next(prefix+format, v...)
	}
}
