package edie

import "errors"

var (
	// ErrInvalidConfiguration is returned for a non-positive cell size or
	// corridor length.
	ErrInvalidConfiguration = errors.New("edie: invalid configuration")

	// ErrInsufficientData is returned when there is nothing to aggregate.
	ErrInsufficientData = errors.New("edie: insufficient data")
)
