package epd

import (
	"fmt"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	epdconn "github.com/BeatGlow/epd/conn"
)

// Lines are the control lines wired between host and panel controller.
type Lines interface {
	// Reset sets the reset line to the provided level.
	Reset(gpio.Level) error

	// DataCommand sets the data/command select line, low selects command.
	DataCommand(gpio.Level) error

	// Select sets the chip select line, a no-op when the bus selects natively.
	Select(gpio.Level) error

	// Busy reads the busy line, high means the controller is busy.
	Busy() gpio.Level
}

// PinLines are control lines on GPIO pins.
type PinLines struct {
	RST  gpio.PinOut
	DC   gpio.PinOut
	BUSY gpio.PinIn

	// CS is optional, nil uses the bus native chip select.
	CS gpio.PinOut
}

// Reset drives the reset pin.
func (l *PinLines) Reset(level gpio.Level) error {
	return l.RST.Out(level)
}

// DataCommand drives the data/command pin.
func (l *PinLines) DataCommand(level gpio.Level) error {
	return l.DC.Out(level)
}

// Select drives the chip select pin, if any.
func (l *PinLines) Select(level gpio.Level) error {
	if l.CS == nil {
		return nil
	}
	return l.CS.Out(level)
}

// Busy reads the busy pin.
func (l *PinLines) Busy() gpio.Level {
	return l.BUSY.Read()
}

func (l *PinLines) String() string {
	cs := "native"
	if l.CS != nil {
		cs = l.CS.Name()
	}
	return fmt.Sprintf("rst=%s dc=%s busy=%s cs=%s", l.RST.Name(), l.DC.Name(), l.BUSY.Name(), cs)
}

// Conn is the command transport for communicating with the controller.
type Conn interface {
	String() string

	// Close the connection.
	Close() error

	// Command sends a command byte with DC low, followed by the optional
	// data bytes as one transfer with DC high.
	Command(byte, ...byte) error

	// Data sends data bytes as one transfer with DC high.
	Data(...byte) error
}

type spiConn struct {
	bus     conn.Conn
	lines   Lines
	dcLevel gpio.Level
	dcValid bool
	maxTx   int
}

// NewConn frames commands on bus, using lines for data/command and chip select.
func NewConn(bus conn.Conn, lines Lines) Conn {
	c := &spiConn{
		bus:   bus,
		lines: lines,
	}
	if l, ok := bus.(conn.Limits); ok {
		c.maxTx = l.MaxTxSize()
	}
	return c
}

func (c *spiConn) String() string {
	return fmt.Sprintf("SPI bus %s", c.bus)
}

func (c *spiConn) Close() error {
	if closer, ok := c.bus.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *spiConn) updateDC(level gpio.Level) error {
	if !c.dcValid || c.dcLevel != level {
		if err := c.lines.DataCommand(level); err != nil {
			c.dcValid = false
			return err
		}
		c.dcLevel = level
		c.dcValid = true
	}
	return nil
}

func (c *spiConn) Command(cmnd byte, data ...byte) (err error) {
	if err = c.lines.Select(gpio.Low); err != nil {
		return
	}
	defer func() {
		if serr := c.lines.Select(gpio.High); err == nil {
			err = serr
		}
	}()

	if err = c.updateDC(gpio.Low); err != nil {
		return
	}
	if err = c.bus.Tx([]byte{cmnd}, nil); err != nil {
		return errors.Wrapf(err, "command %#02x", cmnd)
	}
	if len(data) > 0 {
		if err = c.updateDC(gpio.High); err != nil {
			return
		}
		if err = c.writeChunked(data); err != nil {
			return errors.Wrapf(err, "command %#02x data", cmnd)
		}
	}
	return
}

func (c *spiConn) Data(data ...byte) (err error) {
	if len(data) == 0 {
		return
	}
	if err = c.updateDC(gpio.High); err != nil {
		return
	}
	if err = c.lines.Select(gpio.Low); err != nil {
		return
	}
	defer func() {
		if serr := c.lines.Select(gpio.High); err == nil {
			err = serr
		}
	}()
	return c.writeChunked(data)
}

func (c *spiConn) writeChunked(data []byte) error {
	if c.maxTx <= 0 || len(data) <= c.maxTx {
		return c.bus.Tx(data, nil)
	}
	for len(data) > 0 {
		n := len(data)
		if n > c.maxTx {
			n = c.maxTx
		}
		if err := c.bus.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// SPIConfig describes the SPI bus and GPIO line configuration.
type SPIConfig struct {
	// Port is the SPI port name, empty selects the first available port.
	Port string

	// Speed is the SPI clock frequency.
	Speed physic.Frequency

	// Reset, DC, Busy and CS are GPIO line names, CS is optional.
	Reset string
	DC    string
	Busy  string
	CS    string
}

// DefaultSPIConfig are the default configuration values, matching the
// common Raspberry Pi e-paper HAT wiring.
var DefaultSPIConfig = SPIConfig{
	Port:  "",
	Speed: 4 * physic.MegaHertz,
	Reset: "GPIO17",
	DC:    "GPIO25",
	Busy:  "GPIO24",
}

// OpenSPI acquires the SPI bus and GPIO lines. Failures are configuration
// errors; nothing is left open when an error is returned.
func OpenSPI(config *SPIConfig) (Conn, Lines, error) {
	if config == nil {
		config = new(SPIConfig)
		*config = DefaultSPIConfig
	}
	if config.Speed == 0 {
		config.Speed = DefaultSPIConfig.Speed
	}

	rst, err := epdconn.Output(config.Reset, gpio.High)
	if err != nil {
		return nil, nil, errors.WithMessage(ErrConfig, err.Error())
	}
	dc, err := epdconn.Output(config.DC, gpio.Low)
	if err != nil {
		return nil, nil, errors.WithMessage(ErrConfig, err.Error())
	}
	busy, err := epdconn.Input(config.Busy)
	if err != nil {
		return nil, nil, errors.WithMessage(ErrConfig, err.Error())
	}
	lines := &PinLines{RST: rst, DC: dc, BUSY: busy}
	if config.CS != "" {
		if lines.CS, err = epdconn.Output(config.CS, gpio.High); err != nil {
			return nil, nil, errors.WithMessage(ErrConfig, err.Error())
		}
	}

	bus, err := epdconn.OpenSPI(config.Port, config.Speed)
	if err != nil {
		return nil, nil, errors.WithMessage(ErrConfig, err.Error())
	}

	return NewConn(bus, lines), lines, nil
}
