// Package config loads and saves the epd-test YAML configuration.
package config

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/BeatGlow/epd"
)

// Default values.
const (
	DefaultWidth       = 296
	DefaultHeight      = 128
	DefaultBusyTimeout = "30s"
	DefaultSPISpeed    = "4MHz"
	DefaultLogLevel    = "info"
)

// PanelConfig is the panel geometry.
type PanelConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// BusyTimeout bounds every wait on the busy line, as a Go duration.
	BusyTimeout string `yaml:"busy_timeout"`
}

// SPIConfig selects the SPI port.
type SPIConfig struct {
	// Port is the periph port name, empty selects the first one.
	Port string `yaml:"port"`

	// Speed is the clock frequency, for example "4MHz".
	Speed string `yaml:"speed"`
}

// GPIOConfig names the control lines.
type GPIOConfig struct {
	Reset string `yaml:"reset"`
	DC    string `yaml:"dc"`
	Busy  string `yaml:"busy"`

	// CS is optional, empty uses the native chip select of the port.
	CS string `yaml:"cs,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Panel    PanelConfig `yaml:"panel"`
	SPI      SPIConfig   `yaml:"spi"`
	GPIO     GPIOConfig  `yaml:"gpio"`
	LogLevel string      `yaml:"log_level"`
}

// DefaultConfig returns the configuration for a 2.9" panel on a Raspberry Pi
// e-paper HAT.
func DefaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			Width:       DefaultWidth,
			Height:      DefaultHeight,
			BusyTimeout: DefaultBusyTimeout,
		},
		SPI: SPIConfig{
			Port:  epd.DefaultSPIConfig.Port,
			Speed: DefaultSPISpeed,
		},
		GPIO: GPIOConfig{
			Reset: epd.DefaultSPIConfig.Reset,
			DC:    epd.DefaultSPIConfig.DC,
			Busy:  epd.DefaultSPIConfig.Busy,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Panel.Width == 0 {
		c.Panel.Width = d.Panel.Width
	}
	if c.Panel.Height == 0 {
		c.Panel.Height = d.Panel.Height
	}
	if c.Panel.BusyTimeout == "" {
		c.Panel.BusyTimeout = d.Panel.BusyTimeout
	}
	if c.SPI.Speed == "" {
		c.SPI.Speed = d.SPI.Speed
	}
	if c.GPIO.Reset == "" {
		c.GPIO.Reset = d.GPIO.Reset
	}
	if c.GPIO.DC == "" {
		c.GPIO.DC = d.GPIO.DC
	}
	if c.GPIO.Busy == "" {
		c.GPIO.Busy = d.GPIO.Busy
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate checks the values that can be checked without hardware.
func (c *Config) Validate() error {
	if c.Panel.Width <= 0 || c.Panel.Width%8 != 0 {
		return errors.WithMessagef(epd.ErrConfig, "panel width %d is not a positive multiple of 8", c.Panel.Width)
	}
	if c.Panel.Height <= 0 || c.Panel.Height%8 != 0 {
		return errors.WithMessagef(epd.ErrConfig, "panel height %d is not a positive multiple of 8", c.Panel.Height)
	}
	if _, err := c.busyTimeout(); err != nil {
		return err
	}
	if _, err := c.speed(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	seen := make(map[string]string)
	for _, line := range []struct{ name, pin string }{
		{"reset", c.GPIO.Reset},
		{"dc", c.GPIO.DC},
		{"busy", c.GPIO.Busy},
		{"cs", c.GPIO.CS},
	} {
		if line.pin == "" {
			if line.name == "cs" {
				continue
			}
			return errors.WithMessagef(epd.ErrConfig, "gpio %s is not set", line.name)
		}
		if other, dup := seen[line.pin]; dup {
			return errors.WithMessagef(epd.ErrConfig, "gpio %s and %s both use %s", other, line.name, line.pin)
		}
		seen[line.pin] = line.name
	}
	return nil
}

func (c *Config) busyTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Panel.BusyTimeout)
	if err != nil {
		return 0, errors.WithMessagef(epd.ErrConfig, "busy timeout %q: %v", c.Panel.BusyTimeout, err)
	}
	if d < time.Millisecond {
		return 0, errors.WithMessagef(epd.ErrConfig, "busy timeout %s is shorter than 1ms", d)
	}
	return d, nil
}

func (c *Config) speed() (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(c.SPI.Speed); err != nil {
		return 0, errors.WithMessagef(epd.ErrConfig, "spi speed %q: %v", c.SPI.Speed, err)
	}
	if f <= 0 {
		return 0, errors.WithMessagef(epd.ErrConfig, "spi speed %s is not positive", f)
	}
	return f, nil
}

// Level is the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, errors.WithMessagef(epd.ErrConfig, "log level %q", c.LogLevel)
	}
	return l, nil
}

// Driver converts the configuration to the driver configuration types.
func (c *Config) Driver(log *zap.Logger) (*epd.SPIConfig, *epd.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	speed, _ := c.speed()
	timeout, _ := c.busyTimeout()
	return &epd.SPIConfig{
			Port:  c.SPI.Port,
			Speed: speed,
			Reset: c.GPIO.Reset,
			DC:    c.GPIO.DC,
			Busy:  c.GPIO.Busy,
			CS:    c.GPIO.CS,
		}, &epd.Config{
			Width:       c.Panel.Width,
			Height:      c.Panel.Height,
			BusyTimeout: timeout,
			Logger:      log,
		}, nil
}

// Load reads the configuration at path from fsys. A missing file is created
// with the default configuration, which is returned.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err = Save(fsys, path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WithMessagef(epd.ErrConfig, "parse %s: %v", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path on fsys through a temporary file, with 0600
// permissions.
func Save(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	tmp, err := afero.TempFile(fsys, dir, ".epd-config-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary config")
	}
	name := tmp.Name()
	defer func() { _ = fsys.Remove(name) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temporary config")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "write temporary config")
	}
	if err = fsys.Chmod(name, 0o600); err != nil {
		return errors.Wrap(err, "chmod temporary config")
	}
	return errors.Wrap(fsys.Rename(name, path), "replace config")
}

// Save writes the configuration to path on fsys.
func (c *Config) Save(fsys afero.Fs, path string) error {
	return Save(fsys, path, c)
}
