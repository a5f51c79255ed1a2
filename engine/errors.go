package engine

import "errors"

var (
	ErrMissingServerIdentity = errors.New("server identity is not persisted")
	ErrSchemaTooOld          = errors.New("database schema is too old")
	ErrInvalidConfiguration  = errors.New("invalid compute engine configuration")
	ErrInvalidPath           = errors.New("invalid server path")
	ErrUnknownTaskType       = errors.New("no processor for task type")
	ErrTaskNotFound          = errors.New("task not found")
)
