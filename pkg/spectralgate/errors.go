package spectralgate

import (
	"errors"
)

var (
	ErrInvalidConfig    = errors.New("invalid config")
	ErrInsufficientData = errors.New("insufficient data: the buffer is shorter than one frame")
	ErrLengthMismatch   = errors.New("the output length differs from the input length")
	ErrClosed           = errors.New("the gate is closed")
	ErrUnaligned        = errors.New("the buffer length is not a multiple of the hop size")
)
