// Package conn opens the SPI buses and GPIO lines used by the display drivers.
//
// Host drivers must be registered with periph.io/x/host/v3 host.Init before
// any bus or pin can be opened.
package conn

import (
	"fmt"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// DefaultSPIMaxTxSize is the spidev default buffer size, used when the port
// does not report its own limit.
const DefaultSPIMaxTxSize = 4096

// SPI is a half duplex SPI connection in mode 0 with 8 bit words.
type SPI struct {
	port      spi.PortCloser
	conn      spi.Conn
	name      string
	speed     physic.Frequency
	maxTxSize int
}

// OpenSPI opens the named SPI port, an empty name selects the first available
// port. The port often corresponds to the CS line for that bus, for example
// "/dev/spidev0.0" or "SPI0.0".
func OpenSPI(name string, speed physic.Frequency) (*SPI, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "conn: open SPI port %q", name)
	}

	c, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, errors.Wrapf(err, "conn: connect SPI port %q at %s", name, speed)
	}

	s := &SPI{
		port:      port,
		conn:      c,
		name:      name,
		speed:     speed,
		maxTxSize: DefaultSPIMaxTxSize,
	}
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		s.maxTxSize = l.MaxTxSize()
	}
	return s, nil
}

func (s *SPI) String() string {
	return fmt.Sprintf("SPI %s mode=0 bits per word=8 max speed=%s", s.conn, s.speed)
}

// Close the SPI port.
func (s *SPI) Close() error {
	return s.port.Close()
}

// Tx does a single transfer on the bus.
func (s *SPI) Tx(w, r []byte) error {
	return s.conn.Tx(w, r)
}

// Duplex is always half duplex, the panel controllers are write only.
func (s *SPI) Duplex() conn.Duplex {
	return conn.Half
}

// MaxTxSize is the largest single transfer the port accepts.
func (s *SPI) MaxTxSize() int {
	return s.maxTxSize
}

var (
	_ conn.Conn   = (*SPI)(nil)
	_ conn.Limits = (*SPI)(nil)
)
