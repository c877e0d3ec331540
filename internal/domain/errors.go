// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity, or a parent it references, does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness violation (duplicate tag name, duplicate composite key).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates input that violates a field-level invariant.
var ErrValidation = errors.New("validation failed")

// ErrForbidden indicates the caller's claims do not permit the write.
var ErrForbidden = errors.New("forbidden")
