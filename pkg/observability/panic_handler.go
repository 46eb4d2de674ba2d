package observability

import "runtime/debug"

// RecoverPanic recovers a panic and logs it with the stack trace. Deferred
// in goroutines that run outside the HTTP recovery middleware, such as the
// cron cleanup jobs, so a panic there cannot take the process down.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("Recovered from panic")
	}
}
