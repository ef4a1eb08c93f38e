package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate indicates a uniqueness violation, such as an email that is
// already registered.
var ErrDuplicate = errors.New("repository: duplicate")
