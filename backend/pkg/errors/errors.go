package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeReference is an operation naming an id that does not exist
	ErrorTypeReference ErrorType = "reference"
	// ErrorTypeStructural is a mutation that would break a graph invariant
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeValidation represents malformed input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePersistence represents storage backend failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeChat represents LLM/chat failures
	ErrorTypeChat ErrorType = "chat"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind reports the error category; embedded by every concrete error
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Reference Errors

// ErrNodeNotFound is returned when a node id is unknown
type ErrNodeNotFound struct {
	*BaseError
	NodeID string
}

func NewNodeNotFound(nodeID string) *ErrNodeNotFound {
	return &ErrNodeNotFound{
		BaseError: NewBaseError(ErrorTypeReference, fmt.Sprintf("node not found: %s", nodeID), nil),
		NodeID:    nodeID,
	}
}

// ErrRelationNotFound is returned when a relation id is unknown
type ErrRelationNotFound struct {
	*BaseError
	RelationID string
}

func NewRelationNotFound(relationID string) *ErrRelationNotFound {
	return &ErrRelationNotFound{
		BaseError:  NewBaseError(ErrorTypeReference, fmt.Sprintf("relation not found: %s", relationID), nil),
		RelationID: relationID,
	}
}

// ErrMindMapNotFound is returned when a mind map id is unknown
type ErrMindMapNotFound struct {
	*BaseError
	MapID string
}

func NewMindMapNotFound(mapID string) *ErrMindMapNotFound {
	return &ErrMindMapNotFound{
		BaseError: NewBaseError(ErrorTypeReference, fmt.Sprintf("mind map not found: %s", mapID), nil),
		MapID:     mapID,
	}
}

// Structural Errors

// ErrCycleDetected is returned when a parent-child link would make a node its own ancestor
type ErrCycleDetected struct {
	*BaseError
	ParentID string
	ChildID  string
}

func NewCycleDetected(parentID, childID string) *ErrCycleDetected {
	return &ErrCycleDetected{
		BaseError: NewBaseError(ErrorTypeStructural, fmt.Sprintf("linking %s under %s would create a cycle", childID, parentID), nil),
		ParentID:  parentID,
		ChildID:   childID,
	}
}

// ErrInvalidRelationType is returned for relation types outside the closed set
type ErrInvalidRelationType struct {
	*BaseError
	RelationType string
}

func NewInvalidRelationType(relationType string) *ErrInvalidRelationType {
	return &ErrInvalidRelationType{
		BaseError:    NewBaseError(ErrorTypeStructural, fmt.Sprintf("invalid relation type: %q", relationType), nil),
		RelationType: relationType,
	}
}

// ErrInvalidComposite is returned when a composite cannot be formed from the given members
type ErrInvalidComposite struct {
	*BaseError
	Reason string
}

func NewInvalidComposite(reason string) *ErrInvalidComposite {
	return &ErrInvalidComposite{
		BaseError: NewBaseError(ErrorTypeStructural, "invalid composite: "+reason, nil),
		Reason:    reason,
	}
}

// Validation Errors

// ErrValidationFailed is returned for malformed input
type ErrValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidationFailed(field, reason string) *ErrValidationFailed {
	return &ErrValidationFailed{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Persistence Errors

// ErrPersistenceFailed is returned when a storage backend operation fails
type ErrPersistenceFailed struct {
	*BaseError
	Backend   string
	Operation string
}

func NewPersistenceFailed(backend, operation string, err error) *ErrPersistenceFailed {
	return &ErrPersistenceFailed{
		BaseError: NewBaseError(ErrorTypePersistence, fmt.Sprintf("%s %s failed", backend, operation), err),
		Backend:   backend,
		Operation: operation,
	}
}

// Chat Errors

// ErrChatUnavailable is returned when no LLM is configured
var ErrChatUnavailable = NewBaseError(ErrorTypeChat, "chat service not configured", nil)

// ErrChatFailed is returned when the LLM request fails
type ErrChatFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewChatFailed(model string, attempts int, retryable bool, err error) *ErrChatFailed {
	return &ErrChatFailed{
		BaseError: NewBaseError(ErrorTypeChat, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type kinded interface {
	Kind() ErrorType
}

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var k kinded
	if stderrors.As(err, &k) {
		return k.Kind() == errType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var chatErr *ErrChatFailed
	if stderrors.As(err, &chatErr) {
		return chatErr.Retryable
	}
	// Backends may recover (connection drops, locked sqlite file)
	return IsErrorType(err, ErrorTypePersistence)
}
