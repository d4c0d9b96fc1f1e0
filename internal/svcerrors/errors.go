// Package svcerrors defines the error taxonomy shared by every subsystem.
//
// It is a leaf package: nothing here imports back into job, router, or
// conflict code, so the subsystems that raise these errors can all depend
// on it without cycles.
package svcerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a taxonomy member independent of its message text.
type Code string

const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeForbidden            Code = "FORBIDDEN"
	CodeValidationFailure    Code = "VALIDATION_FAILURE"
	CodeStatusTransition     Code = "STATUS_TRANSITION_ERROR"
	CodeGenerationConflict   Code = "GENERATION_CONFLICT"
	CodeNoReadyMaterials     Code = "NO_READY_MATERIALS"
	CodeNodeNotFound         Code = "NODE_NOT_FOUND"
	CodeStructuredOutput     Code = "STRUCTURED_OUTPUT_ERROR"
	CodeAllModelsFailed      Code = "ALL_MODELS_FAILED"
	CodeProviderDisabled     Code = "PROVIDER_DISABLED"
	CodeUnprocessedEntry     Code = "UNPROCESSED_ENTRY"
	CodeDependencyFailed     Code = "DEPENDENCY_FAILED"
	CodeDatabaseError        Code = "DATABASE_ERROR"
	CodeInternal             Code = "INTERNAL"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeUnauthorized         Code = "UNAUTHORIZED"
)

// ServiceError is the concrete type behind every named taxonomy member.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying the given structured details.
func (e *ServiceError) WithDetails(details map[string]interface{}) *ServiceError {
	cp := *e
	cp.Details = details
	return &cp
}

func newErr(code Code, status int, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...), HTTPStatus: status}
}

func NotFound(resource, id string) *ServiceError {
	return newErr(CodeNotFound, http.StatusNotFound, "%s %s not found", resource, id)
}

func Forbidden(reason string) *ServiceError {
	return newErr(CodeForbidden, http.StatusForbidden, "forbidden: %s", reason)
}

func ValidationFailure(format string, args ...interface{}) *ServiceError {
	return newErr(CodeValidationFailure, http.StatusUnprocessableEntity, format, args...)
}

func StatusTransitionError(from, to string) *ServiceError {
	return newErr(CodeStatusTransition, http.StatusConflict, "illegal transition %s -> %s", from, to)
}

func GenerationConflict(jobID string, nodeID *string, reason string) *ServiceError {
	return newErr(CodeGenerationConflict, http.StatusConflict, "%s", reason).WithDetails(map[string]interface{}{
		"job_id":  jobID,
		"node_id": nodeID,
		"reason":  reason,
	})
}

func NoReadyMaterials() *ServiceError {
	return newErr(CodeNoReadyMaterials, http.StatusUnprocessableEntity, "subtree has non-ready materials")
}

func NodeNotFound(nodeID string) *ServiceError {
	return newErr(CodeNodeNotFound, http.StatusNotFound, "node %s not found in course tree", nodeID)
}

func StructuredOutputError(provider, schemaName string, cause error) *ServiceError {
	e := newErr(CodeStructuredOutput, http.StatusBadGateway, "provider %s returned content that failed schema %s", provider, schemaName)
	e.Err = cause
	return e
}

func AllModelsFailed(reasons map[string]string) *ServiceError {
	e := newErr(CodeAllModelsFailed, http.StatusBadGateway, "all models in chain failed")
	details := make(map[string]interface{}, len(reasons))
	for k, v := range reasons {
		details[k] = v
	}
	return e.WithDetails(details)
}

func ProviderDisabled(provider, reason string) *ServiceError {
	return newErr(CodeProviderDisabled, http.StatusServiceUnavailable, "provider %s disabled: %s", provider, reason)
}

func UnprocessedEntry(entryID string) *ServiceError {
	return newErr(CodeUnprocessedEntry, http.StatusUnprocessableEntity, "entry %s has no processed content", entryID)
}

func DependencyFailed(jobID, dependsOn string) *ServiceError {
	return newErr(CodeDependencyFailed, http.StatusFailedDependency, "job %s depends on %s which did not complete", jobID, dependsOn)
}

func DatabaseError(err error) *ServiceError {
	e := newErr(CodeDatabaseError, http.StatusInternalServerError, "database error")
	e.Err = err
	return e
}

func Internal(err error) *ServiceError {
	e := newErr(CodeInternal, http.StatusInternalServerError, "internal error")
	e.Err = err
	return e
}

func RateLimited(retryAfterSeconds int64) *ServiceError {
	return newErr(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded").WithDetails(map[string]interface{}{
		"retry_after_seconds": retryAfterSeconds,
	})
}

func Unauthorized(reason string) *ServiceError {
	return newErr(CodeUnauthorized, http.StatusUnauthorized, "unauthorized: %s", reason)
}

// As recovers a *ServiceError from err's chain, if present.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HTTPStatus maps any error to the status code a future HTTP layer should
// return: a ServiceError's own status, or 500 for anything unrecognized.
func HTTPStatus(err error) int {
	if se, ok := As(err); ok {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
