package core

import "errors"

var (
	ErrNotFound      = errors.New("entry not found")
	ErrAlreadyExists = errors.New("entry already exists")
	// ErrOperationInProgress is returned instead of queueing when an import or export is
	// already running.
	ErrOperationInProgress = errors.New("an import or export is already in progress")
)
