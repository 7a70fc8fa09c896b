package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code identifies a class of failure across the service.
type Code string

// Severity grades an error for alerting and audit.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"

	// Vault and assets.
	CodeUnknownIdentity   Code = "UNKNOWN_IDENTITY"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
	CodeInvalidAsset      Code = "INVALID_ASSET"

	// Orders and matching.
	CodeInvalidOperation      Code = "INVALID_OPERATION"
	CodeOrderNotFound         Code = "ORDER_NOT_FOUND"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeUnsupportedAction     Code = "UNSUPPORTED_ACTION"

	// Ledger interaction.
	CodeTransport      Code = "TRANSPORT_ERROR"
	CodeLedgerRejected Code = "LEDGER_REJECTED"
)

// Attributes are the defaults attached to a code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical, Alert: true},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityWarning, Retryable: true, Alert: true},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeUnknownIdentity:       {Message: "identity is not held by the vault", Severity: SeverityInfo},
		CodeInvalidCredential:     {Message: "credential is malformed or does not match identity", Severity: SeverityWarning},
		CodeInvalidAsset:          {Message: "asset reference is incomplete or malformed", Severity: SeverityInfo},
		CodeInvalidOperation:      {Message: "operation is not valid for the target", Severity: SeverityInfo},
		CodeOrderNotFound:         {Message: "offer does not exist on the ledger", Severity: SeverityInfo},
		CodeInsufficientLiquidity: {Message: "order book has no depth for the requested side", Severity: SeverityInfo, Retryable: true},
		CodeUnsupportedAction:     {Message: "action is not supported", Severity: SeverityInfo},
		CodeTransport:             {Message: "ledger endpoint unreachable", Severity: SeverityCritical, Retryable: true, Alert: true},
		CodeLedgerRejected:        {Message: "transaction rejected by the ledger", Severity: SeverityWarning, Alert: true},
	}
)

// Register adds or replaces the attributes of a code. Call it during init.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes of code, or those of UNKNOWN when the
// code is not registered.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error is the coded error used throughout the service.
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
}

// Option customises an Error.
type Option func(*Error)

// WithMetadata attaches a key/value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable overrides the registered retryable flag.
func WithRetryable(retryable bool) Option {
	return func(e *Error) { e.retryable = &retryable }
}

// New creates an Error. An empty message falls back to the registered one.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the message without the cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Detail returns the message followed by the cause, without the code prefix.
func (e *Error) Detail() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Metadata returns a copy of the attached metadata.
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable reports whether the caller may retry.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

// ShouldAlert reports whether the error should raise an alert.
func (e *Error) ShouldAlert() bool {
	if e == nil {
		return false
	}
	return AttributesOf(e.code).Alert
}

// Severity returns the registered severity of the code.
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	return AttributesOf(e.code).Severity
}

// From extracts an *Error from err's chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Ensure returns err as an *Error, wrapping foreign errors as UNKNOWN.
func Ensure(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := From(err); ok {
		return e
	}
	return Wrap(CodeUnknown, err, "")
}

// CodeOf returns the code carried by err, UNKNOWN when there is none.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ShouldAlert reports whether err should raise an alert.
func ShouldAlert(err error) bool {
	if e, ok := From(err); ok {
		return e.ShouldAlert()
	}
	return false
}

// SeverityOf returns the severity of err.
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
