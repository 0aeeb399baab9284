package session

import "github.com/rand/loop/types"

// Session error codes
const (
	ErrCodeTokenLimit  types.ErrorCode = "SESSION_TOKEN_LIMIT"
	ErrCodeInvalidItem types.ErrorCode = "SESSION_INVALID_ITEM"
)

// NewTokenLimitError creates an error for an addition that would exceed the
// configured token budget.
func NewTokenLimitError(message string) *types.LoopError {
	return types.NewError(ErrCodeTokenLimit, message)
}

// NewInvalidItemError creates an error for malformed session content.
func NewInvalidItemError(message string) *types.LoopError {
	return types.NewError(ErrCodeInvalidItem, message)
}
