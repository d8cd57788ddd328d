package epd

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var errFakeBus = errors.New("fake bus failure")

type transfer struct {
	dc   gpio.Level
	cs   gpio.Level
	data []byte
}

// fakeBus records every transfer along with the DC and CS levels at the
// time of the transfer.
type fakeBus struct {
	dc        func() gpio.Level
	cs        func() gpio.Level
	transfers []transfer
	failAt    int // index of the transfer that fails, -1 for none
	maxTx     int
	closed    bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{failAt: -1}
}

func (b *fakeBus) String() string { return "fake" }

func (b *fakeBus) Duplex() conn.Duplex { return conn.Half }

func (b *fakeBus) MaxTxSize() int { return b.maxTx }

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBus) Tx(w, r []byte) error {
	tr := transfer{data: append([]byte(nil), w...)}
	if b.dc != nil {
		tr.dc = b.dc()
	}
	if b.cs != nil {
		tr.cs = b.cs()
	}
	b.transfers = append(b.transfers, tr)
	if len(b.transfers)-1 == b.failAt {
		return errFakeBus
	}
	return nil
}

func (b *fakeBus) reset() {
	b.transfers = nil
}

type command struct {
	cmd  byte
	data [][]byte
}

// commands groups the recorded transfers by command.
func (b *fakeBus) commands(t *testing.T) []command {
	t.Helper()
	var out []command
	for i, tr := range b.transfers {
		if tr.dc == gpio.Low {
			if len(tr.data) != 1 {
				t.Fatalf("transfer %d: command transfer of %d bytes", i, len(tr.data))
			}
			out = append(out, command{cmd: tr.data[0]})
			continue
		}
		if len(out) == 0 {
			t.Fatalf("transfer %d: data before any command", i)
		}
		out[len(out)-1].data = append(out[len(out)-1].data, tr.data)
	}
	return out
}

// fakeLines are control lines with a scripted busy line and recorded sleeps.
type fakeLines struct {
	dc       gpio.Level
	dcWrites int
	resets   []gpio.Level
	resetAt  []int // number of bus transfers before each reset
	bus      *fakeBus
	busy     []gpio.Level
	stuck    bool
	reads    int
	sleeps   []time.Duration
}

func (l *fakeLines) Reset(level gpio.Level) error {
	l.resets = append(l.resets, level)
	l.resetAt = append(l.resetAt, len(l.bus.transfers))
	return nil
}

func (l *fakeLines) DataCommand(level gpio.Level) error {
	l.dc = level
	l.dcWrites++
	return nil
}

func (l *fakeLines) Select(gpio.Level) error { return nil }

func (l *fakeLines) Busy() gpio.Level {
	l.reads++
	if l.stuck {
		return gpio.High
	}
	if len(l.busy) == 0 {
		return gpio.Low
	}
	level := l.busy[0]
	l.busy = l.busy[1:]
	return level
}

func (l *fakeLines) sleep(d time.Duration) {
	l.sleeps = append(l.sleeps, d)
}

func newFakeConn() (Conn, *fakeBus, *fakeLines) {
	bus := newFakeBus()
	lines := &fakeLines{bus: bus}
	bus.dc = func() gpio.Level { return lines.dc }
	return NewConn(bus, lines), bus, lines
}

func TestConnCommandFraming(t *testing.T) {
	c, bus, _ := newFakeConn()

	if err := c.Command(0x61, 0x80, 0x01, 0x28); err != nil {
		t.Fatal(err)
	}
	if len(bus.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(bus.transfers))
	}
	if tr := bus.transfers[0]; tr.dc != gpio.Low || !bytes.Equal(tr.data, []byte{0x61}) {
		t.Errorf("expected opcode with DC low, got %+v", tr)
	}
	if tr := bus.transfers[1]; tr.dc != gpio.High || !bytes.Equal(tr.data, []byte{0x80, 0x01, 0x28}) {
		t.Errorf("expected data with DC high, got %+v", tr)
	}
}

func TestConnCommandWithoutData(t *testing.T) {
	c, bus, _ := newFakeConn()

	if err := c.Command(0x12); err != nil {
		t.Fatal(err)
	}
	if len(bus.transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(bus.transfers))
	}
	if tr := bus.transfers[0]; tr.dc != gpio.Low {
		t.Errorf("expected DC low, got %v", tr.dc)
	}
}

func TestConnCommandOpcodeFailure(t *testing.T) {
	c, bus, _ := newFakeConn()
	bus.failAt = 0

	err := c.Command(0x01, 0x03, 0x00)
	if !errors.Is(err, errFakeBus) {
		t.Fatalf("expected bus error, got %v", err)
	}
	if len(bus.transfers) != 1 {
		t.Errorf("expected data phase to be skipped, got %d transfers", len(bus.transfers))
	}
}

func TestConnCommandDataFailure(t *testing.T) {
	c, bus, _ := newFakeConn()
	bus.failAt = 1

	err := c.Command(0x01, 0x03, 0x00)
	if !errors.Is(err, errFakeBus) {
		t.Fatalf("expected bus error, got %v", err)
	}
	if len(bus.transfers) != 2 {
		t.Errorf("expected 2 transfers, got %d", len(bus.transfers))
	}
}

func TestConnDataKeepsDC(t *testing.T) {
	c, bus, lines := newFakeConn()

	if err := c.Command(0x10); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := c.Data(0xff, 0xff); err != nil {
			t.Fatal(err)
		}
	}
	if lines.dcWrites != 2 {
		t.Errorf("expected 2 DC writes, got %d", lines.dcWrites)
	}
	for i, tr := range bus.transfers[1:] {
		if tr.dc != gpio.High {
			t.Errorf("data transfer %d with DC low", i)
		}
	}
	if err := c.Data(); err != nil {
		t.Fatal(err)
	}
	if len(bus.transfers) != 4 {
		t.Errorf("expected empty data to be skipped, got %d transfers", len(bus.transfers))
	}
}

func TestConnChunked(t *testing.T) {
	bus := newFakeBus()
	bus.maxTx = 4
	lines := &fakeLines{bus: bus}
	bus.dc = func() gpio.Level { return lines.dc }
	c := NewConn(bus, lines)

	if err := c.Data(0, 1, 2, 3, 4, 5, 6, 7, 8, 9); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9}}
	if len(bus.transfers) != len(want) {
		t.Fatalf("expected %d transfers, got %d", len(want), len(bus.transfers))
	}
	for i, tr := range bus.transfers {
		if !bytes.Equal(tr.data, want[i]) {
			t.Errorf("transfer %d is %x, expected %x", i, tr.data, want[i])
		}
		if tr.dc != gpio.High {
			t.Errorf("transfer %d with DC low", i)
		}
	}
}

func TestConnClose(t *testing.T) {
	c, bus, _ := newFakeConn()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !bus.closed {
		t.Error("expected bus to be closed")
	}
}

func TestPinLines(t *testing.T) {
	var (
		rst   = &gpiotest.Pin{N: "RST", L: gpio.High}
		dc    = &gpiotest.Pin{N: "DC"}
		busy  = &gpiotest.Pin{N: "BUSY", L: gpio.High}
		cs    = &gpiotest.Pin{N: "CS", L: gpio.High}
		lines = &PinLines{RST: rst, DC: dc, BUSY: busy, CS: cs}
		bus   = newFakeBus()
	)
	bus.dc = func() gpio.Level { return dc.L }
	bus.cs = func() gpio.Level { return cs.L }
	c := NewConn(bus, lines)

	if err := c.Command(0x50, 0x97); err != nil {
		t.Fatal(err)
	}
	for i, tr := range bus.transfers {
		if tr.cs != gpio.Low {
			t.Errorf("transfer %d without chip select", i)
		}
	}
	if bus.transfers[0].dc != gpio.Low || bus.transfers[1].dc != gpio.High {
		t.Errorf("unexpected DC levels %v, %v", bus.transfers[0].dc, bus.transfers[1].dc)
	}
	if cs.L != gpio.High {
		t.Error("expected chip select to be released")
	}

	if err := lines.Reset(gpio.Low); err != nil {
		t.Fatal(err)
	}
	if rst.L != gpio.Low {
		t.Error("expected reset low")
	}
	if lines.Busy() != gpio.High {
		t.Error("expected busy high")
	}
	busy.L = gpio.Low
	if lines.Busy() != gpio.Low {
		t.Error("expected busy low")
	}
	if want := "rst=RST dc=DC busy=BUSY cs=CS"; lines.String() != want {
		t.Errorf("expected %q, got %q", want, lines.String())
	}
}

func TestPinLinesNativeSelect(t *testing.T) {
	lines := &PinLines{
		RST:  &gpiotest.Pin{N: "RST"},
		DC:   &gpiotest.Pin{N: "DC"},
		BUSY: &gpiotest.Pin{N: "BUSY"},
	}
	if err := lines.Select(gpio.Low); err != nil {
		t.Errorf("expected native select to be a no-op, got %v", err)
	}
	if want := "rst=RST dc=DC busy=BUSY cs=native"; lines.String() != want {
		t.Errorf("expected %q, got %q", want, lines.String())
	}
}

func TestOpenSPIMissingPin(t *testing.T) {
	for _, config := range []*SPIConfig{
		{Reset: "", DC: "EPD_MISSING_DC", Busy: "EPD_MISSING_BUSY"},
		{Reset: "EPD_MISSING_RST", DC: "EPD_MISSING_DC", Busy: "EPD_MISSING_BUSY"},
	} {
		c, lines, err := OpenSPI(config)
		if !errors.Is(err, ErrConfig) {
			t.Errorf("reset %q: expected configuration error, got %v", config.Reset, err)
		}
		if c != nil || lines != nil {
			t.Errorf("reset %q: expected nothing to be returned", config.Reset)
		}
	}
}
