package domain

import "errors"

var (
	ErrRegistryStopped = errors.New("broadcast registry stopped")
	ErrRegistryFull    = errors.New("broadcast registry at capacity")
	ErrSourceClosed    = errors.New("event source closed")
)
