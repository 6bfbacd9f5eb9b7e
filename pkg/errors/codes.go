package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string identifier of a specific error condition. The prefix
// before the underscore names the module that owns it.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeUnknown            ErrorCode = "COMMON_000"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Molecule error codes.
const (
	ErrCodeMoleculeInvalidSMILES  ErrorCode = "MOL_001"
	ErrCodeMoleculeInvalidFormat  ErrorCode = "MOL_003"
	ErrCodeMoleculeParsingFailed  ErrorCode = "MOL_006"
	ErrCodeMoleculeValence        ErrorCode = "MOL_011"
	ErrCodeSiteOutOfRange         ErrorCode = "MOL_016"
	ErrCodeConjugateTopology      ErrorCode = "MOL_017"
	ErrCodeFeatureUnknown         ErrorCode = "MOL_018"
	ErrCodeMoleculeEmpty          ErrorCode = "MOL_019"
	ErrCodeMoleculeTooLarge       ErrorCode = "MOL_020"
)

// Model error codes.
const (
	ErrCodeAIModelNotAvailable    ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed      ErrorCode = "AI_002"
	ErrCodeAIModelVersionMismatch ErrorCode = "AI_003"
	ErrCodeAIInputInvalid         ErrorCode = "AI_004"
	ErrCodeAIVariantUnknown       ErrorCode = "AI_005"
	ErrCodeAITrainingDiverged     ErrorCode = "AI_006"
	ErrCodeAIDatasetInvalid       ErrorCode = "AI_007"
)

// Infrastructure error codes.
const (
	ErrCodeDatabaseError     ErrorCode = "INFRA_001"
	ErrCodeCacheError        ErrorCode = "INFRA_002"
	ErrCodeStorageError      ErrorCode = "INFRA_003"
	ErrCodeArtifactNotFound  ErrorCode = "INFRA_004"
	ErrCodeMessageQueueError ErrorCode = "INFRA_005"
	ErrCodeConfigInvalid     ErrorCode = "INFRA_006"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMoleculeInvalidSMILES: http.StatusBadRequest,
	ErrCodeMoleculeInvalidFormat: http.StatusBadRequest,
	ErrCodeMoleculeParsingFailed: http.StatusBadRequest,
	ErrCodeMoleculeValence:       http.StatusBadRequest,
	ErrCodeSiteOutOfRange:        http.StatusBadRequest,
	ErrCodeConjugateTopology:     http.StatusBadRequest,
	ErrCodeFeatureUnknown:        http.StatusBadRequest,
	ErrCodeMoleculeEmpty:         http.StatusBadRequest,
	ErrCodeMoleculeTooLarge:      http.StatusRequestEntityTooLarge,

	ErrCodeAIModelNotAvailable:    http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:      http.StatusInternalServerError,
	ErrCodeAIModelVersionMismatch: http.StatusInternalServerError,
	ErrCodeAIInputInvalid:         http.StatusBadRequest,
	ErrCodeAIVariantUnknown:       http.StatusBadRequest,
	ErrCodeAITrainingDiverged:     http.StatusInternalServerError,
	ErrCodeAIDatasetInvalid:       http.StatusBadRequest,

	ErrCodeDatabaseError:     http.StatusInternalServerError,
	ErrCodeCacheError:        http.StatusInternalServerError,
	ErrCodeStorageError:      http.StatusInternalServerError,
	ErrCodeArtifactNotFound:  http.StatusNotFound,
	ErrCodeMessageQueueError: http.StatusInternalServerError,
	ErrCodeConfigInvalid:     http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeUnknown:            "unknown error",
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeInvalidSMILES: "invalid SMILES",
	ErrCodeMoleculeInvalidFormat: "unsupported molecule format",
	ErrCodeMoleculeParsingFailed: "failed to parse molecule",
	ErrCodeMoleculeValence:       "impossible valence",
	ErrCodeSiteOutOfRange:        "site index out of range",
	ErrCodeConjugateTopology:     "conjugate graphs differ in topology",
	ErrCodeFeatureUnknown:        "unknown feature name",
	ErrCodeMoleculeEmpty:         "molecule has no atoms",
	ErrCodeMoleculeTooLarge:      "molecule exceeds the configured atom limit",

	ErrCodeAIModelNotAvailable:    "model not available",
	ErrCodeAIInferenceFailed:      "model inference failed",
	ErrCodeAIModelVersionMismatch: "model artifact version mismatch",
	ErrCodeAIInputInvalid:         "invalid model input",
	ErrCodeAIVariantUnknown:       "unknown regressor variant",
	ErrCodeAITrainingDiverged:     "training diverged",
	ErrCodeAIDatasetInvalid:       "invalid training dataset",

	ErrCodeDatabaseError:     "database error",
	ErrCodeCacheError:        "cache error",
	ErrCodeStorageError:      "object storage error",
	ErrCodeArtifactNotFound:  "model artifact not found",
	ErrCodeMessageQueueError: "message queue error",
	ErrCodeConfigInvalid:     "invalid configuration",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
