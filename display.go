// Package epd contains a driver for IL0373 based electrophoretic (e-paper) displays.
//
// The IL0373 is a double buffered controller driven over a command/data SPI
// bus with a busy line for refresh synchronisation. The driver accepts
// vertically tiled, MSB first monochrome buffers (see the pixel package)
// and transposes them into the controller's native column order.
//
// A Dev is not safe for concurrent use; callers must serialize access.
package epd

import (
	"image"
	"time"

	"go.uber.org/zap"
)

// Display is an e-paper display.
type Display interface {
	// Close the display driver.
	Close() error

	// PowerOn turns the panel charge pumps on.
	PowerOn() error

	// PowerOff turns the panel charge pumps off.
	PowerOff() error

	// Write a region of page packed pixels at (x, y) and refresh the panel.
	Write(x, y int, desc *BufferDescriptor, buf []byte) error

	// Read a region of pixels from the display.
	Read(x, y int, desc *BufferDescriptor, buf []byte) error

	// Framebuffer returns the display framebuffer memory.
	Framebuffer() ([]byte, error)

	// SetBrightness adjusts the brightness level.
	SetBrightness(level uint8) error

	// SetContrast adjusts the contrast level.
	SetContrast(level uint8) error

	// Capabilities reports the display capabilities.
	Capabilities() Capabilities

	// SetPixelFormat selects the pixel format for writes.
	SetPixelFormat(PixelFormat) error

	// SetOrientation adjusts the panel orientation.
	SetOrientation(Orientation) error

	// Bounds is the display bounding box (dimensions).
	Bounds() image.Rectangle
}

// Config is the display configuration.
type Config struct {
	// Width of the display in pixels, must be a multiple of 8.
	Width int

	// Height of the display in pixels, must be a multiple of 8.
	Height int

	// BusyTimeout bounds the wait for the busy line to drop.
	BusyTimeout time.Duration

	// Logger receives driver diagnostics, nil disables logging.
	Logger *zap.Logger
}

// BufferDescriptor describes a write or read buffer.
type BufferDescriptor struct {
	// BufSize is the payload size in bytes.
	BufSize int

	// Width of the region in pixels.
	Width int

	// Height of the region in pixels.
	Height int

	// Pitch is the number of pixels between consecutive rows.
	Pitch int
}

// PixelFormat is a bit set of pixel formats.
type PixelFormat uint32

// Pixel formats.
const (
	PixelFormatRGB888 PixelFormat = 1 << iota
	PixelFormatMono01             // 0 is black, 1 is white
	PixelFormatMono10             // 1 is black, 0 is white
	PixelFormatARGB8888
	PixelFormatRGB565
	PixelFormatBGR565
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGB888:
		return "RGB888"
	case PixelFormatMono01:
		return "MONO01"
	case PixelFormatMono10:
		return "MONO10"
	case PixelFormatARGB8888:
		return "ARGB8888"
	case PixelFormatRGB565:
		return "RGB565"
	case PixelFormatBGR565:
		return "BGR565"
	default:
		return "unknown"
	}
}

// ScreenInfo flags describe the memory layout of a display.
type ScreenInfo uint32

// Screen info flags.
const (
	ScreenInfoMonoVTiled ScreenInfo = 1 << iota
	ScreenInfoMonoMSBFirst
	ScreenInfoEPD
	ScreenInfoDoubleBuffer
)

// Orientation defines the panel orientation.
type Orientation uint8

// Orientations.
const (
	OrientationNormal Orientation = iota
	OrientationRotated90
	OrientationRotated180
	OrientationRotated270
)

func (o Orientation) String() string {
	switch o % 4 {
	case OrientationRotated90:
		return "90°"
	case OrientationRotated180:
		return "180°"
	case OrientationRotated270:
		return "270°"
	default:
		return "0°"
	}
}

// Capabilities of a display.
type Capabilities struct {
	XResolution           int
	YResolution           int
	SupportedPixelFormats PixelFormat
	CurrentPixelFormat    PixelFormat
	ScreenInfo            ScreenInfo
	CurrentOrientation    Orientation
}

// State is the driver lifecycle state.
type State uint8

// Driver states.
const (
	// StateDetached is a driver that was never initialized.
	StateDetached State = iota

	// StatePartial is a driver whose initialization sequence aborted part way.
	// The panel is in an unknown state and needs a full Init.
	StatePartial

	// StateReady is an initialized panel.
	StateReady

	// StateSleeping is a panel in deep sleep, only Init wakes it.
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StatePartial:
		return "partial"
	case StateReady:
		return "ready"
	case StateSleeping:
		return "sleeping"
	default:
		return "detached"
	}
}
