package request

import (
	"errors"
	"fmt"
)

// Error codes shared by the lifecycle engine, the dispatch sub-engine, and
// the invoice deriver. Handlers map these to HTTP statuses; none of them is
// raised after a mutation has been written.
const (
	CodeInvalidTransition = "INVALID_STATE_TRANSITION"
	CodeForbidden         = "FORBIDDEN"
	CodeMissingPayload    = "MISSING_PAYLOAD"
	CodeNotCompleted      = "NOT_COMPLETED"
	CodeAlreadyFinalized  = "ALREADY_FINALIZED"
	CodeStoreConflict     = "STORE_CONFLICT"
)

type LifecycleError struct {
	Code    string
	Message string
}

func (e LifecycleError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Errf(code, format string, args ...any) error {
	return LifecycleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a LifecycleError carrying code.
func IsCode(err error, code string) bool {
	var le LifecycleError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
