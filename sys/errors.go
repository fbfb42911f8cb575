package sys

import (
	"fmt"
	"runtime/debug"

	"github.com/agentuity/storefront-cache/logger"
	"github.com/cockroachdb/errors"
)

func panicError(skip int, r any) error {
	if err, ok := r.(error); ok {
		return errors.WrapWithDepth(skip+1, err, "panic")
	}
	return errors.NewWithDepth(skip+1, fmt.Sprintf("panic: %v", r))
}

// RecoverPanic is meant to be deferred in background goroutines. It logs the
// panic and its stack instead of letting it crash the process.
func RecoverPanic(log logger.Logger) {
	if r := recover(); r != nil {
		err := panicError(1, r)
		log.Error("recovered from panic: %s\n%s", err, debug.Stack())
	}
}
