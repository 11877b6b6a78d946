package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel targets for errors.Is checks. The typed errors below carry
// context but always match their sentinel.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")
	ErrQuota      = errors.New("storage quota exceeded")
)

// ValidationError reports every violated rule, not just the first one.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps an underlying store failure with the operation and
// key it happened on.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

// QuotaError marks a capacity failure from the durable store.
type QuotaError struct {
	Key string
	Err error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded writing key %q: %v", e.Key, e.Err)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuota
}

func NewQuotaError(key string, err error) *QuotaError {
	return &QuotaError{Key: key, Err: err}
}
