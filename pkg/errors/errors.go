// Package errors provides the unified error type and factory functions for
// pkasolver. Every layer (domain, intelligence, application, infrastructure,
// interfaces) uses AppError as the single carrier of structured error
// information so HTTP responses, worker dead-letter payloads and logs all agree
// on the same codes.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the structured error type used throughout pkasolver. It supports
// errors.Is / errors.As / errors.Unwrap through Unwrap.
//
// Usage:
//
//	return errors.New(errors.ErrCodeMoleculeInvalidSMILES, "unclosed ring 1")
//	return errors.Wrap(err, errors.ErrCodeStorageError, "read artifact")
//	return errors.NewModelInferenceError(site, v).WithDetail("variant=nnconv_pair")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context such as the offending SMILES or the
	// site index.
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is captured by the factories and never included in Error().
	Stack string
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted when empty.
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(string(e.Code))
	sb.WriteString("] ")
	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by code so that sentinel values such as
// ErrModelNotLoaded work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// HTTPStatus returns the HTTP status code mapped to the error code.
func (e *AppError) HTTPStatus() int {
	return HTTPStatusForCode(e.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Factories
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError wrapping err. A nil err yields nil. When err is
// already an *AppError and code is ErrCodeUnknown the original code is kept.
//
// Wrap returns error rather than *AppError so that a nil result stays a nil
// interface at call sites that return it directly.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	if code == ErrCodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if code == ErrCodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// NewValidationError reports malformed input: unparsable SMILES, bad MOL
// blocks, out-of-range site indices.
func NewValidationError(code ErrorCode, message string) *AppError {
	if code == "" {
		code = ErrCodeValidation
	}
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NewModelInferenceError reports a non-finite or implausible regressor output
// for one candidate site.
func NewModelInferenceError(site int, value float64) *AppError {
	return &AppError{
		Code:    ErrCodeAIInferenceFailed,
		Message: fmt.Sprintf("regressor returned %v for site %d", value, site),
		Stack:   captureStack(1),
	}
}

// NewTrainingDivergedError reports a non-finite training loss.
func NewTrainingDivergedError(epoch int, loss float64) *AppError {
	return &AppError{
		Code:    ErrCodeAITrainingDiverged,
		Message: fmt.Sprintf("training loss became %v at epoch %d", loss, epoch),
		Stack:   captureStack(1),
	}
}

// InvalidParam constructs an ErrCodeBadRequest AppError.
func InvalidParam(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Stack:   captureStack(1),
	}
}

// NotFound constructs an ErrCodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs an ErrCodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Sentinels
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrModelNotLoaded is returned by scoring before an ensemble is installed.
	ErrModelNotLoaded = &AppError{Code: ErrCodeAIModelNotAvailable}

	// ErrArtifactVersion is returned when an artifact carries an unknown schema.
	ErrArtifactVersion = &AppError{Code: ErrCodeAIModelVersionMismatch}
)

// ─────────────────────────────────────────────────────────────────────────────
// Inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the code of the first *AppError in err's chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeUnknown
}

// IsNotFound reports whether err carries a not-found code.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound) || IsCode(err, ErrCodeArtifactNotFound)
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	code := GetCode(err)
	if code == "" || code == ErrCodeUnknown {
		return false
	}
	return ModuleForCode(code) == "MOL" || code == ErrCodeValidation || code == ErrCodeBadRequest
}

// IsModelInference reports whether err is a per-candidate inference failure.
func IsModelInference(err error) bool {
	return IsCode(err, ErrCodeAIInferenceFailed)
}

// IsTrainingDiverged reports whether err is a non-finite training loss.
func IsTrainingDiverged(err error) bool {
	return IsCode(err, ErrCodeAITrainingDiverged)
}

// Is and As re-export the standard library helpers so callers need a single
// import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

//Personal.AI order the ending
