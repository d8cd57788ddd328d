package config

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap/zapcore"
	"periph.io/x/conn/v3/physic"

	"github.com/BeatGlow/epd"
)

func TestLoadCreatesDefault(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/etc/epd/config.yaml"

	cfg, err := Load(fsys, path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Panel.Width != DefaultWidth || cfg.Panel.Height != DefaultHeight {
		t.Errorf("expected default panel, got %+v", cfg.Panel)
	}

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("expected default config to be written")
	}
	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}

	again, err := Load(fsys, path)
	if err != nil {
		t.Fatal(err)
	}
	if *again != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, again)
	}
}

func TestLoadNormalizes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "config.yaml", []byte(`
panel:
  width: 152
  height: 152
spi:
  port: /dev/spidev0.1
gpio:
  cs: GPIO8
log_level: " DEBUG "
`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fsys, "config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Panel: PanelConfig{Width: 152, Height: 152, BusyTimeout: DefaultBusyTimeout},
		SPI:   SPIConfig{Port: "/dev/spidev0.1", Speed: DefaultSPISpeed},
		GPIO: GPIOConfig{
			Reset: epd.DefaultSPIConfig.Reset,
			DC:    epd.DefaultSPIConfig.DC,
			Busy:  epd.DefaultSPIConfig.Busy,
			CS:    "GPIO8",
		},
		LogLevel: "debug",
	}
	if *cfg != want {
		t.Errorf("expected %+v, got %+v", want, *cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "config.yaml", []byte("panel: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(fsys, "config.yaml"); !errors.Is(err, epd.ErrConfig) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(afero.NewMemMapFs(), ""); err == nil {
		t.Error("expected error")
	}
}

func TestSaveReadOnly(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
	if err := Save(fsys, "/config.yaml", DefaultConfig()); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Panel.BusyTimeout = "5s"
	cfg.SPI.Speed = "10MHz"
	cfg.GPIO.CS = "GPIO8"

	if err := cfg.Save(fsys, "/home/pi/.config/epd.yaml"); err != nil {
		t.Fatal(err)
	}
	data, err := afero.ReadFile(fsys, "/home/pi/.config/epd.yaml")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"busy_timeout: 5s", "speed: 10MHz", "cs: GPIO8"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in:\n%s", want, data)
		}
	}

	files, err := afero.ReadDir(fsys, "/home/pi/.config")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected temporary file to be removed, got %d files", len(files))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"width not a multiple of 8", func(c *Config) { c.Panel.Width = 212 }, true},
		{"negative height", func(c *Config) { c.Panel.Height = -8 }, true},
		{"bad timeout", func(c *Config) { c.Panel.BusyTimeout = "soon" }, true},
		{"short timeout", func(c *Config) { c.Panel.BusyTimeout = "10us" }, true},
		{"bad speed", func(c *Config) { c.SPI.Speed = "fast" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"missing busy", func(c *Config) { c.GPIO.Busy = "" }, true},
		{"shared pin", func(c *Config) { c.GPIO.CS = c.GPIO.DC }, true},
		{"chip select", func(c *Config) { c.GPIO.CS = "GPIO8" }, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(it *testing.T) {
			cfg := DefaultConfig()
			test.modify(cfg)
			err := cfg.Validate()
			if test.wantErr {
				if !errors.Is(err, epd.ErrConfig) {
					it.Errorf("expected configuration error, got %v", err)
				}
			} else if err != nil {
				it.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SPI.Speed = "2MHz"
	cfg.Panel.BusyTimeout = "10s"
	cfg.LogLevel = "warn"

	spiConfig, config, err := cfg.Driver(nil)
	if err != nil {
		t.Fatal(err)
	}
	if spiConfig.Speed != 2*physic.MegaHertz {
		t.Errorf("expected 2MHz, got %s", spiConfig.Speed)
	}
	if spiConfig.Reset != "GPIO17" || spiConfig.DC != "GPIO25" || spiConfig.Busy != "GPIO24" || spiConfig.CS != "" {
		t.Errorf("unexpected pins %+v", spiConfig)
	}
	if config.Width != DefaultWidth || config.Height != DefaultHeight || config.BusyTimeout != 10*time.Second {
		t.Errorf("unexpected driver config %+v", config)
	}

	level, err := cfg.Level()
	if err != nil {
		t.Fatal(err)
	}
	if level != zapcore.WarnLevel {
		t.Errorf("expected warn, got %s", level)
	}
}

func TestDriverInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Panel.Height = 100
	if _, _, err := cfg.Driver(nil); !errors.Is(err, epd.ErrConfig) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
