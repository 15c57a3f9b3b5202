package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack. It must be
// deferred directly. The panic is not re-raised.
//
//	defer observability.RecoverPanic(logger, "session sweep")
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic":   r,
			"stack":   string(debug.Stack()),
			"context": where,
		}).Error("PANIC recovered")
	}
}
