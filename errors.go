package epd

import "github.com/pkg/errors"

// Error kinds.
var (
	ErrInvalidArgument = errors.New("epd: invalid argument")
	ErrNotSupported    = errors.New("epd: not supported")
	ErrConfig          = errors.New("epd: configuration error")
	ErrNotReady        = errors.New("epd: display not ready")
	ErrBusyTimeout     = errors.New("epd: timeout waiting for busy line")
)

// Write request errors, each matches its kind with errors.Is.
var (
	ErrPitchTooSmall    = errors.WithMessage(ErrInvalidArgument, "pitch is smaller than width")
	ErrEmptyRegion      = errors.WithMessage(ErrInvalidArgument, "buffer width or height not positive")
	ErrNoBuffer         = errors.WithMessage(ErrInvalidArgument, "display buffer is not available")
	ErrPitchUnsupported = errors.WithMessage(ErrNotSupported, "pitch larger than width")
	ErrHeightBounds     = errors.WithMessage(ErrInvalidArgument, "buffer out of bounds (height)")
	ErrWidthBounds      = errors.WithMessage(ErrInvalidArgument, "buffer out of bounds (width)")
	ErrHeightAlignment  = errors.WithMessage(ErrInvalidArgument, "buffer height not a multiple of 8")
	ErrYAlignment       = errors.WithMessage(ErrInvalidArgument, "y coordinate not a multiple of 8")
	ErrPixelFormat      = errors.WithMessage(ErrNotSupported, "pixel format")
)
