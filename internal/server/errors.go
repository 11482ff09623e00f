package server

import "fmt"

const (
	codeNotFound         = "NOT_FOUND"
	codeForbidden        = "FORBIDDEN"
	codeCapacityExceeded = "CAPACITY_EXCEEDED"
	codeDuplicate        = "DUPLICATE"
	codePolicyViolation  = "POLICY_VIOLATION"
	codeInvalidState     = "INVALID_STATE"
)

// commandError is the failure half of a command acknowledgement. Handlers
// never panic across the channel boundary; every failure carries a taxonomy
// code plus a human message.
type commandError struct {
	Code    string
	Message string
}

func (e *commandError) Error() string {
	return e.Message
}

func errNotFound(format string, args ...any) error {
	return &commandError{Code: codeNotFound, Message: fmt.Sprintf(format, args...)}
}

func errForbidden(format string, args ...any) error {
	return &commandError{Code: codeForbidden, Message: fmt.Sprintf(format, args...)}
}

func errCapacity(format string, args ...any) error {
	return &commandError{Code: codeCapacityExceeded, Message: fmt.Sprintf(format, args...)}
}

func errDuplicate(format string, args ...any) error {
	return &commandError{Code: codeDuplicate, Message: fmt.Sprintf(format, args...)}
}

func errPolicy(format string, args ...any) error {
	return &commandError{Code: codePolicyViolation, Message: fmt.Sprintf(format, args...)}
}

func errInvalidState(format string, args ...any) error {
	return &commandError{Code: codeInvalidState, Message: fmt.Sprintf(format, args...)}
}
