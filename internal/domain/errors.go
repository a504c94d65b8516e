package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrGenerationFailure = errors.New("generation failure")
	ErrSynthesisFailure  = errors.New("synthesis failure")
	ErrStorageFailure    = errors.New("storage failure")
	ErrTimeout           = errors.New("timeout")
	ErrUnsupportedRate   = errors.New("unsupported rate")
	ErrAlreadyTerminal   = errors.New("job already terminal")
	ErrActiveJob         = errors.New("user already has an active job")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
)
