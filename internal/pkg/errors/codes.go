package errors

import "net/http"

// Error codes carry no localized text; the console translates them.
// Backend logs are always in English.

// Cluster error codes.
const (
	CodeClusterNotFound    = "CLUSTER_NOT_FOUND"
	CodeClusterUnreachable = "CLUSTER_UNREACHABLE"
	CodeSameCluster        = "SAME_CLUSTER_COMPARISON"
)

// Comparison and sync error codes.
const (
	CodeInvalidCategory    = "INVALID_CATEGORY"
	CodeEmptySelection     = "EMPTY_SELECTION"
	CodeSyncFailed         = "SYNC_FAILED"
	CodeSyncPartialFailure = "SYNC_PARTIAL_FAILURE"
	CodeEntityNotFound     = "ENTITY_NOT_FOUND"
)

// Tag error codes.
const (
	CodeTagPlanInvalid      = "TAG_PLAN_INVALID"
	CodeTagNotFound         = "TAG_NOT_FOUND"
	CodeTagMutationFailed   = "TAG_MUTATION_FAILED"
	CodeTagsPartiallyFailed = "TAG_BATCHES_PARTIALLY_FAILED"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Validation error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// Generic error codes.
const (
	CodeInternalError        = "INTERNAL_ERROR"
	CodeDirectoryUnavailable = "DIRECTORY_UNAVAILABLE"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
)

// Convenience constructors using predefined codes.

// ErrClusterNotFoundf creates a cluster not found error.
func ErrClusterNotFoundf(clusterID string) *AppError {
	return (&AppError{
		Code:       CodeClusterNotFound,
		Message:    "cluster not found",
		HTTPStatus: http.StatusNotFound,
	}).WithParams(map[string]interface{}{"cluster_id": clusterID})
}

// ErrSameClusterf rejects comparing a realm with itself.
func ErrSameClusterf(clusterID string) *AppError {
	return (&AppError{
		Code:       CodeSameCluster,
		Message:    "source and destination must be different clusters",
		HTTPStatus: http.StatusBadRequest,
	}).WithParams(map[string]interface{}{"cluster_id": clusterID})
}

// ErrInvalidCategoryf creates a bad request error for an unknown entity category.
func ErrInvalidCategoryf(category string) *AppError {
	return (&AppError{
		Code:       CodeInvalidCategory,
		Message:    "unknown entity category: " + category,
		HTTPStatus: http.StatusBadRequest,
	}).WithParams(map[string]interface{}{"category": category})
}

// ErrEmptySelection rejects a sync request that selects nothing.
func ErrEmptySelection() *AppError {
	return BadRequest(CodeEmptySelection, "no entities selected for synchronization")
}
