package conn

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// ErrPinNotFound is returned when a GPIO line name is not registered.
var ErrPinNotFound = errors.New("conn: GPIO pin not found")

// Output resolves a GPIO line by name and drives it to the initial level.
func Output(name string, initial gpio.Level) (gpio.PinOut, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err = p.Out(initial); err != nil {
		return nil, errors.Wrapf(err, "conn: GPIO %s as output", name)
	}
	return p, nil
}

// Input resolves a GPIO line by name and configures it as a floating input.
func Input(name string) (gpio.PinIn, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err = p.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "conn: GPIO %s as input", name)
	}
	return p, nil
}

func lookup(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.WithMessage(ErrPinNotFound, "empty name")
	}
	p := gpioreg.ByName(name)
	if p == nil || p == gpio.INVALID {
		return nil, errors.WithMessagef(ErrPinNotFound, "%q", name)
	}
	return p, nil
}
