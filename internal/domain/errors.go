package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownMode        = errors.New("unknown batch mode")
	ErrUnknownPreset      = errors.New("unknown preset")
	ErrInvalidIndex       = errors.New("item index out of range")
	ErrNoResults          = errors.New("no results")
	ErrEmptyResult        = errors.New("empty response")
	ErrProviderFailure    = errors.New("provider failure")
	ErrAlreadyStarted     = errors.New("batch already started")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrBadResolution      = errors.New("unsupported upscale resolution")
)
