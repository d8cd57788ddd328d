package epd

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"

	"github.com/BeatGlow/epd/pixel"
)

const (
	il0373DefaultWidth       = 296
	il0373DefaultHeight      = 128
	il0373DefaultBusyTimeout = 30 * time.Second
	il0373RowsPerPage        = 8
	il0373MaxHeight          = 248 // HRES is one byte, in steps of 8
	il0373MaxWidth           = 511 // VRES is nine bits
	il0373ResetPulse         = 20 * time.Millisecond
	il0373RefreshSettle      = 50 * time.Millisecond
	il0373BusyPoll           = time.Millisecond
	il0373DeepSleepCheck     = 0xA5
)

// Commands (from il0373.pdf).
const (
	il0373PanelSetting     = 0x00
	il0373PowerSetting     = 0x01
	il0373PowerOff         = 0x02
	il0373PowerOffSequence = 0x03
	il0373PowerOn          = 0x04
	il0373PowerOnMeasure   = 0x05
	il0373BoosterSoftStart = 0x06
	il0373DeepSleep        = 0x07
	il0373DTM1             = 0x10 // Start Data Transmission 1
	il0373DataStop         = 0x11
	il0373DisplayRefresh   = 0x12
	il0373DTM2             = 0x13 // Start Data Transmission 2
	il0373LUTVCOM          = 0x20
	il0373LUTWW            = 0x21
	il0373LUTBW            = 0x22
	il0373LUTWB            = 0x23
	il0373LUTBB            = 0x24
	il0373PLL              = 0x30
	il0373CDI              = 0x50 // VCOM and Data Interval Setting
	il0373Resolution       = 0x61
	il0373VCMDCSetting     = 0x82
	il0373PartialWindow    = 0x90
)

// lut is a waveform table, b0, b6 and b18 are the bytes that differ
// between the tables.
type lut struct {
	id, b0, b6, b18 byte
}

var il0373LUTs = []lut{
	{il0373LUTVCOM, 0x00, 0x60, 0x00},
	{il0373LUTWW, 0x40, 0x90, 0xa0},
	{il0373LUTBW, 0x40, 0x90, 0xa0},
	{il0373LUTWB, 0x80, 0x90, 0x50},
	{il0373LUTBB, 0x80, 0x90, 0x50},
}

// data returns the two waveform rows.
func (l lut) data() []byte {
	return []byte{
		l.b0, 0x08, 0x00, 0x00, 0x00, 0x02, l.b6, 0x28, 0x28, 0x00, 0x00, 0x01,
		l.b0, 0x14, 0x00, 0x00, 0x00, 0x01, l.b18, 0x12, 0x12, 0x00, 0x00, 0x01,
	}
}

// padding is the number of zero bytes clocked out after the rows.
func (l lut) padding() int {
	if l.id == il0373LUTVCOM {
		return 20
	}
	return 18
}

// Dev is an IL0373 e-paper display.
type Dev struct {
	c           Conn
	lines       Lines
	log         *zap.Logger
	width       int
	height      int
	pages       int
	busyTimeout time.Duration
	state       State
	frame       []byte
	sleep       func(time.Duration)
}

// IL0373 attaches a display and runs the initialization sequence.
func IL0373(conn Conn, lines Lines, config *Config) (*Dev, error) {
	d, err := New(conn, lines, config)
	if err != nil {
		return nil, err
	}
	if err = d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// Open acquires the hardware described by spiConfig and attaches a display.
// The connection is closed again if the display fails to initialize.
func Open(spiConfig *SPIConfig, config *Config) (*Dev, error) {
	conn, lines, err := OpenSPI(spiConfig)
	if err != nil {
		return nil, err
	}
	d, err := IL0373(conn, lines, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

// New creates a display without touching the hardware, call Init before use.
func New(conn Conn, lines Lines, config *Config) (*Dev, error) {
	if config == nil {
		config = new(Config)
	}
	if config.Width == 0 {
		config.Width = il0373DefaultWidth
	}
	if config.Height == 0 {
		config.Height = il0373DefaultHeight
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = il0373DefaultBusyTimeout
	}

	switch {
	case conn == nil || lines == nil:
		return nil, errors.WithMessage(ErrConfig, "IL0373 needs a connection and control lines")
	case config.Width < 0 || config.Width > il0373MaxWidth || config.Width%il0373RowsPerPage != 0:
		return nil, errors.WithMessagef(ErrConfig, "IL0373 unsupported width %d", config.Width)
	case config.Height < 0 || config.Height > il0373MaxHeight || config.Height%il0373RowsPerPage != 0:
		return nil, errors.WithMessagef(ErrConfig, "IL0373 unsupported height %d", config.Height)
	case config.BusyTimeout < il0373BusyPoll:
		return nil, errors.WithMessagef(ErrConfig, "IL0373 busy timeout %s too short", config.BusyTimeout)
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Dev{
		c:           conn,
		lines:       lines,
		log:         log.With(zap.String("driver", "il0373")),
		width:       config.Width,
		height:      config.Height,
		pages:       config.Height / il0373RowsPerPage,
		busyTimeout: config.BusyTimeout,
		frame:       make([]byte, config.Width*config.Height/8),
		sleep:       time.Sleep,
	}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("IL0373 e-paper %dx%d", d.width, d.height)
}

// State is the lifecycle state of the display.
func (d *Dev) State() State {
	return d.state
}

// Bounds is the display bounding box.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.width, d.height)
}

// Init resets the panel, programs its registers and waveforms, and clears
// both frame buffers. A failing step aborts the sequence and leaves the
// display in StatePartial, call Init again to retry from the reset pulse.
func (d *Dev) Init() error {
	d.state = StatePartial
	if err := d.init(); err != nil {
		d.log.Error("initialization failed", zap.Error(err))
		return err
	}
	d.state = StateReady
	return nil
}

func (d *Dev) init() error {
	d.log.Info("EPD init", zap.Int("width", d.width), zap.Int("height", d.height))

	d.log.Info("EPD reset")
	if err := d.reset(); err != nil {
		return errors.Wrap(err, "reset")
	}

	for _, step := range []struct {
		name string
		cmd  byte
		data []byte
	}{
		{"power setting", il0373PowerSetting, []byte{0x03, 0x00, 0x2b, 0x2b, 0x03}},
		{"booster soft start", il0373BoosterSoftStart, []byte{0x17, 0x17, 0x17}},
		{"panel setting", il0373PanelSetting, []byte{0xbf, 0x0d}}, // VCOM to 0V fast
		{"PLL", il0373PLL, []byte{0x3a}},                          // 100Hz
		{"resolution", il0373Resolution, []byte{byte(d.height), byte(d.width >> 8), byte(d.width)}},
		{"VCM DC setting", il0373VCMDCSetting, []byte{0x08}},
		{"CDI", il0373CDI, []byte{0x97}},
	} {
		d.log.Info("EPD "+step.name, zap.Binary("data", step.data))
		if err := d.c.Command(step.cmd, step.data...); err != nil {
			return errors.Wrap(err, step.name)
		}
	}

	d.log.Info("EPD sending LUT")
	for _, l := range il0373LUTs {
		if err := d.programLUT(l); err != nil {
			return errors.Wrapf(err, "LUT %#02x", l.id)
		}
	}

	d.log.Info("EPD power on")
	if err := d.c.Command(il0373PowerOn); err != nil {
		return errors.Wrap(err, "power on")
	}
	if err := d.waitBusy(); err != nil {
		return errors.Wrap(err, "power on")
	}

	return errors.Wrap(d.clear(), "clear")
}

// reset pulses the reset line.
func (d *Dev) reset() error {
	if err := d.lines.Reset(gpio.Low); err != nil {
		return err
	}
	d.sleep(il0373ResetPulse)
	if err := d.lines.Reset(gpio.High); err != nil {
		return err
	}
	d.sleep(il0373ResetPulse)
	return nil
}

// programLUT selects a waveform table and uploads it, every padding byte is
// a transfer of its own.
func (d *Dev) programLUT(l lut) error {
	if err := d.c.Command(l.id); err != nil {
		return err
	}
	if err := d.c.Data(l.data()...); err != nil {
		return err
	}
	for i := 0; i < l.padding(); i++ {
		if err := d.c.Data(0x00); err != nil {
			return err
		}
	}
	return nil
}

// clear fills both controller frame buffers with white and refreshes.
func (d *Dev) clear() error {
	row := make([]byte, d.width)
	for i := range row {
		row[i] = 0xff
	}

	for _, cmd := range []byte{il0373DTM1, il0373DTM2} {
		if err := d.c.Command(cmd); err != nil {
			return err
		}
		// One row more than there are pages, the controller expects it.
		for page := 0; page <= d.pages; page++ {
			if err := d.c.Data(row...); err != nil {
				return err
			}
		}
	}

	return d.Refresh()
}

// Refresh updates the panel from the controller frame buffer and blocks
// until the controller reports ready.
func (d *Dev) Refresh() error {
	if err := d.c.Command(il0373DisplayRefresh); err != nil {
		return err
	}
	d.sleep(il0373RefreshSettle)
	return d.waitBusy()
}

// waitBusy polls the busy line every millisecond until it drops.
func (d *Dev) waitBusy() error {
	polls := int(d.busyTimeout / il0373BusyPoll)
	for i := 0; d.lines.Busy() == gpio.High; i++ {
		if i >= polls {
			return errors.WithMessagef(ErrBusyTimeout, "busy after %s", d.busyTimeout)
		}
		d.sleep(il0373BusyPoll)
	}
	return nil
}

func (d *Dev) ready() error {
	if d.state != StateReady {
		return errors.WithMessagef(ErrNotReady, "state %s", d.state)
	}
	return nil
}

// Close powers the panel off and closes the connection. The display is
// detached afterwards, closing it again only closes the connection.
func (d *Dev) Close() error {
	var err error
	if d.state == StateReady {
		err = d.PowerOff()
	}
	d.state = StateDetached
	if cerr := d.c.Close(); err == nil {
		err = cerr
	}
	return err
}

// PowerOn turns the panel charge pumps on.
func (d *Dev) PowerOn() error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.c.Command(il0373PowerOn)
}

// PowerOff turns the panel charge pumps off, the image is retained.
func (d *Dev) PowerOff() error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.c.Command(il0373PowerOff)
}

// Sleep powers the panel off and puts the controller in deep sleep. Only a
// reset wakes the controller, so Init must be called before further use.
func (d *Dev) Sleep() error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.c.Command(il0373PowerOff); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}
	if err := d.c.Command(il0373DeepSleep, il0373DeepSleepCheck); err != nil {
		return err
	}
	d.state = StateSleeping
	return nil
}

func (d *Dev) validate(x, y int, desc *BufferDescriptor, buf []byte) error {
	switch {
	case desc == nil:
		return ErrNoBuffer
	case desc.Pitch < desc.Width:
		return ErrPitchTooSmall
	case desc.Width <= 0 || desc.Height <= 0:
		return ErrEmptyRegion
	case buf == nil || desc.BufSize <= 0:
		return ErrNoBuffer
	case desc.Pitch > desc.Width:
		return ErrPitchUnsupported
	case y < 0 || y+desc.Height > d.height:
		return ErrHeightBounds
	case x < 0 || x+desc.Width > d.width:
		return ErrWidthBounds
	case desc.Height%il0373RowsPerPage != 0:
		return ErrHeightAlignment
	case y%il0373RowsPerPage != 0:
		return ErrYAlignment
	}
	return nil
}

// Write validates the region, then sends the full panel from buf and
// refreshes. buf holds the whole panel in the vertically tiled MSB first
// layout; the region only has to describe a valid area of it.
func (d *Dev) Write(x, y int, desc *BufferDescriptor, buf []byte) error {
	if err := d.validate(x, y, desc, buf); err != nil {
		d.log.Error("write rejected", zap.Int("x", x), zap.Int("y", y), zap.Error(err))
		return err
	}
	if err := d.ready(); err != nil {
		return err
	}

	d.log.Info("write request", zap.Int("x", x), zap.Int("y", y), zap.Int("buf_size", desc.BufSize))

	src := buf
	if desc.BufSize < len(src) {
		src = src[:desc.BufSize]
	}
	transpose(d.frame, src, d.width, d.height)

	if err := d.c.Command(il0373DTM2, d.frame...); err != nil {
		return err
	}
	return d.Refresh()
}

// Draw renders img onto the whole panel, dark pixels become ink.
func (d *Dev) Draw(img image.Image) error {
	m := pixel.NewMonoVerticalMSBImage(d.width, d.height)
	draw.Draw(m, m.Bounds(), img, img.Bounds().Min, draw.Src)
	return d.Write(0, 0, &BufferDescriptor{
		BufSize: len(m.Pix),
		Width:   d.width,
		Height:  d.height,
		Pitch:   d.width,
	}, m.Pix)
}

// Read is not supported, the controller has no readback.
func (d *Dev) Read(int, int, *BufferDescriptor, []byte) error {
	d.log.Error("read not supported")
	return errors.WithMessage(ErrNotSupported, "read")
}

// Framebuffer is not supported.
func (d *Dev) Framebuffer() ([]byte, error) {
	d.log.Error("framebuffer not supported")
	return nil, errors.WithMessage(ErrNotSupported, "framebuffer")
}

// SetBrightness is not supported.
func (d *Dev) SetBrightness(uint8) error {
	d.log.Warn("brightness not supported")
	return errors.WithMessage(ErrNotSupported, "brightness")
}

// SetContrast is not supported.
func (d *Dev) SetContrast(uint8) error {
	d.log.Warn("contrast not supported")
	return errors.WithMessage(ErrNotSupported, "contrast")
}

// SetOrientation is not supported.
func (d *Dev) SetOrientation(o Orientation) error {
	d.log.Error("orientation not supported", zap.Stringer("orientation", o))
	return errors.WithMessage(ErrNotSupported, "orientation")
}

// SetPixelFormat accepts PixelFormatMono10 only.
func (d *Dev) SetPixelFormat(f PixelFormat) error {
	if f == PixelFormatMono10 {
		return nil
	}
	d.log.Error("pixel format not supported", zap.Stringer("format", f))
	return errors.WithMessage(ErrPixelFormat, f.String())
}

func (d *Dev) Capabilities() Capabilities {
	return Capabilities{
		XResolution:           d.width,
		YResolution:           d.height,
		SupportedPixelFormats: PixelFormatMono10,
		CurrentPixelFormat:    PixelFormatMono10,
		ScreenInfo: ScreenInfoMonoVTiled |
			ScreenInfoMonoMSBFirst |
			ScreenInfoEPD |
			ScreenInfoDoubleBuffer,
		CurrentOrientation: OrientationNormal,
	}
}

var _ Display = (*Dev)(nil)
