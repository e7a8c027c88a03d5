package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies failures of the admission core. Business refusals are not
// errors and never carry a Kind; they are returned as decision codes.
type Kind string

const (
	// KindUnknown is reported for errors that did not originate in this package.
	KindUnknown Kind = ""
	// KindConfiguration marks a malformed option, condition or campaign definition.
	// It is not retryable and fails closed.
	KindConfiguration Kind = "configuration"
	// KindContention marks a lost lock or commit race. The caller may re-evaluate and retry once.
	KindContention Kind = "contention"
	// KindInvariant marks ledger state that should be impossible, such as two
	// active answers for one user. It is never retryable.
	KindInvariant Kind = "invariant_violation"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidOption       Code = "INVALID_OPTION"
	CodeInvalidCampaign     Code = "INVALID_CAMPAIGN"
	CodeInvalidInstance     Code = "INVALID_INSTANCE"
	CodeInvalidProfile      Code = "INVALID_PROFILE"
	CodeInvalidSetting      Code = "INVALID_SETTING"
	CodeConditionFailed     Code = "CONDITION_FAILED"
	CodeDuplicatePriority   Code = "DUPLICATE_CONDITION_PRIORITY"
	CodeLockTimeout         Code = "LOCK_TIMEOUT"
	CodeConcurrentCommit    Code = "CONCURRENT_COMMIT"
	CodeDuplicateActiveSeat Code = "DUPLICATE_ACTIVE_ANSWER"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodeIllegalStatusTarget Code = "ILLEGAL_STATUS_TARGET"
	CodeUnknownAnswerStatus Code = "UNKNOWN_ANSWER_STATUS"
	CodeSchemaVersion       Code = "SCHEMA_VERSION_MISMATCH"
	CodeBadMigration        Code = "BAD_MIGRATION"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Kind     Kind              // Failure class used for propagation decisions
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context such as option and user ids
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind, and by code when the
// target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks against a whole kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration, Message: "configuration error"}
	ErrContention    = &Error{Kind: KindContention, Message: "contention"}
	ErrInvariant     = &Error{Kind: KindInvariant, Message: "invariant violation"}
)

// Configuration creates a fail-closed configuration error.
func Configuration(code Code, message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: message, Cause: cause}
}

// Contention creates a retryable contention error.
func Contention(code Code, message string, cause error) *Error {
	return &Error{Kind: KindContention, Code: code, Message: message, Cause: cause}
}

// Invariant creates an invariant violation with metadata describing the offending rows.
func Invariant(code Code, message string, metadata map[string]string) *Error {
	return &Error{Kind: KindInvariant, Code: code, Message: message, Metadata: metadata}
}

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the caller may re-evaluate and retry.
func IsRetryable(err error) bool {
	return KindOf(err) == KindContention
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool {
	return KindOf(err) == KindInvariant
}
