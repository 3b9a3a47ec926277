package blobstart

import "errors"

var (
	// ErrNotFound is returned when a container or blob does not exist
	ErrNotFound = errors.New("not found")
	// ErrContainerExists is returned when creating a container that already exists
	ErrContainerExists = errors.New("container already exists")
	// ErrInvalidInput is returned when a blob or container name fails validation
	ErrInvalidInput = errors.New("invalid input")
)
