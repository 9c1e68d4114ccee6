package domain

import "errors"

// Common errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists (e.g., duplicate URL)
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrNoFieldsToUpdate is returned when no fields are provided for an update
	ErrNoFieldsToUpdate = errors.New("no fields to update")

	// ErrInvalidContent is returned when creating content with invalid fields
	ErrInvalidContent = errors.New("invalid content")

	// ErrInvalidSource is returned when a source definition is incomplete
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidOutboxEntry is returned when creating an outbox entry with invalid fields
	ErrInvalidOutboxEntry = errors.New("invalid outbox entry")
)
