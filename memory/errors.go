package memory

import "github.com/rand/loop/types"

// Memory error codes
const (
	ErrCodeValidationFailed types.ErrorCode = "MEMORY_VALIDATION_FAILED"
	ErrCodeNodeNotFound     types.ErrorCode = "MEMORY_NODE_NOT_FOUND"
	ErrCodeEdgeNotFound     types.ErrorCode = "MEMORY_EDGE_NOT_FOUND"
	ErrCodeDuplicateID      types.ErrorCode = "MEMORY_DUPLICATE_ID"
	ErrCodeStorageFailed    types.ErrorCode = "MEMORY_STORAGE_FAILED"
	ErrCodeStoreClosed      types.ErrorCode = "MEMORY_STORE_CLOSED"
	ErrCodeCodecFailed      types.ErrorCode = "MEMORY_CODEC_FAILED"
	ErrCodeInvalidConfig    types.ErrorCode = "INVALID_MEMORY_CONFIG"
)

// NewValidationError creates an error for malformed input: out-of-range
// confidence, unknown enum values, malformed payloads.
func NewValidationError(message string) *types.LoopError {
	return types.NewError(ErrCodeValidationFailed, message)
}

// WrapValidationError creates a validation error wrapping a decode failure.
func WrapValidationError(message string, cause error) *types.LoopError {
	return types.WrapError(ErrCodeValidationFailed, message, cause)
}

// NewNodeNotFoundError creates an error for an id absent from the store.
func NewNodeNotFoundError(id string) *types.LoopError {
	return types.NewError(ErrCodeNodeNotFound, "node not found: "+id)
}

// NewEdgeNotFoundError creates an error for an edge id absent from the store.
func NewEdgeNotFoundError(id string) *types.LoopError {
	return types.NewError(ErrCodeEdgeNotFound, "edge not found: "+id)
}

// NewDuplicateIDError creates an error for an insertion that collided with
// an existing id.
func NewDuplicateIDError(id string) *types.LoopError {
	return types.NewError(ErrCodeDuplicateID, "id already exists: "+id)
}

// NewStorageError creates an error for a persistence backend failure.
// The cause is surfaced verbatim; retry policy belongs to the caller.
func NewStorageError(message string, cause error) *types.LoopError {
	return types.WrapError(ErrCodeStorageFailed, message, cause)
}

// NewStoreClosedError creates an error for operations on a closed store.
func NewStoreClosedError() *types.LoopError {
	return types.NewError(ErrCodeStoreClosed, "memory store is closed")
}

// NewCodecError creates an error for a failed import/export operation.
func NewCodecError(message string, cause error) *types.LoopError {
	return types.WrapError(ErrCodeCodecFailed, message, cause)
}

// NewInvalidConfigError creates an error for invalid memory configuration.
func NewInvalidConfigError(message string) *types.LoopError {
	return types.NewError(ErrCodeInvalidConfig, message)
}
