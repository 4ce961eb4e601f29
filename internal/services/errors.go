// Package services provides the business logic layer between handlers and
// the buffers, analytics and session storage.
package services

import (
	"errors"

	"github.com/bactolab/resistscope/internal/models"
)

// Error codes carried by ServiceError
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeNoData          = "NO_DATA"
	CodeConflict        = "CONFLICT"
	CodeStorage         = "STORAGE_ERROR"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInvalidImport   = "INVALID_FORMAT"
	CodeAnalysisFailed  = "ANALYSIS_FAILED"
	CodeUpstreamFailure = "UPSTREAM_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// validationError converts a models.ValidationError into a ServiceError
// with one detail per field. Other errors become INVALID_REQUEST.
func validationError(err error) *ServiceError {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		details := make(map[string]interface{}, len(verr.Fields))
		for field, msg := range verr.Fields {
			details[field] = msg
		}
		return NewServiceErrorWithDetails(CodeValidation, verr.Error(), details)
	}
	return NewServiceError(CodeInvalidRequest, err.Error())
}

func storageError(op string, err error) *ServiceError {
	return NewServiceErrorWithDetails(CodeStorage, "Failed to "+op, map[string]interface{}{"error": err.Error()})
}
