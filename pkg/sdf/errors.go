package sdf

import "errors"

var (
	// ErrUnknownType is returned when a serialized shape names a type ordinal
	// that is not registered. Decoding cannot recover from it.
	ErrUnknownType = errors.New("sdf: unknown shape type")

	// ErrShortRead is returned when a payload ends before a value is complete.
	ErrShortRead = errors.New("sdf: short read")

	// ErrInvalidQuality is returned for non-positive quality parameters.
	ErrInvalidQuality = errors.New("sdf: invalid quality")
)
