package model

import "errors"

// Model errors.
var (
	ErrMalformedInput    = errors.New("malformed model input")
	ErrMissingExtension  = errors.New("expected file name with an extension")
	ErrDegenerateNormal  = errors.New("position referenced by no face")
	ErrUnwritableOutput  = errors.New("cannot write output file")
	ErrInvalidPositions  = errors.New("position count does not match vertex count")
	ErrInvalidIndexRange = errors.New("mesh index ranges do not cover the index buffer")
)
