package statestore

import "errors"

var (
	ErrNotFound            = errors.New("state not found")
	ErrCorrupt             = errors.New("state is corrupt")
	ErrIncompatibleVersion = errors.New("incompatible state version")
)
