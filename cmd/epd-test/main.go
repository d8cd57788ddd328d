package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"periph.io/x/host/v3"

	"github.com/BeatGlow/epd"
	"github.com/BeatGlow/epd/draw"
	"github.com/BeatGlow/epd/internal/config"
	"github.com/BeatGlow/epd/pixel"
)

var (
	configFlag   = flag.StringP("config", "c", "epd.yaml", "configuration file, created if missing")
	widthFlag    = flag.Int("width", config.DefaultWidth, "panel width")
	heightFlag   = flag.Int("height", config.DefaultHeight, "panel height")
	portFlag     = flag.String("spi", "", "SPI port (default: use first available)")
	speedFlag    = flag.String("speed", config.DefaultSPISpeed, "SPI clock frequency")
	resetFlag    = flag.String("reset", epd.DefaultSPIConfig.Reset, "Reset GPIO pin")
	dcFlag       = flag.String("dc", epd.DefaultSPIConfig.DC, "Data/Command GPIO pin (DC)")
	busyFlag     = flag.String("busy", epd.DefaultSPIConfig.Busy, "Busy GPIO pin")
	csFlag       = flag.String("cs", "", "Chip select GPIO pin (default: native)")
	timeoutFlag  = flag.String("busy-timeout", config.DefaultBusyTimeout, "busy wait limit")
	levelFlag    = flag.String("log-level", config.DefaultLogLevel, "log level")
	patternFlag  = flag.StringP("pattern", "p", "border", "test pattern: none, border, checker or stripes")
	textFlag     = flag.StringP("text", "t", "", "text to draw, \\n separates lines")
	fontFlag     = flag.String("font", "", "TrueType font file (default: built-in 7x13)")
	fontSizeFlag = flag.Float64("font-size", 16, "TrueType font size in points")
	imageFlag    = flag.StringP("image", "i", "", "image file to show instead of the test pattern")
	invertFlag   = flag.Bool("invert", false, "swap ink and paper")
	clearFlag    = flag.Bool("clear", false, "only clear the panel")
	saveFlag     = flag.Bool("save", false, "write the effective configuration back")
	noSleepFlag  = flag.Bool("no-sleep", false, "leave the controller powered instead of deep sleep")
)

func main() {
	flag.Parse()

	fsys := afero.NewOsFs()
	cfg, err := config.Load(fsys, *configFlag)
	if err != nil {
		fatal(err)
	}
	override(cfg)
	if *saveFlag {
		if err = cfg.Save(fsys, *configFlag); err != nil {
			fatal(err)
		}
	}

	level, err := cfg.Level()
	if err != nil {
		fatal(err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	spiConfig, displayConfig, err := cfg.Driver(logger)
	if err != nil {
		fatal(err)
	}

	if _, err = host.Init(); err != nil {
		fatal(err)
	}

	display, err := epd.Open(spiConfig, displayConfig)
	if err != nil {
		fatal(err)
	}
	logger.Info("using display", zap.Stringer("display", display))

	if !*clearFlag {
		img, err := compose(fsys, display.Bounds())
		if err != nil {
			_ = display.Close()
			fatal(err)
		}
		if err = display.Draw(img); err != nil {
			_ = display.Close()
			fatal(err)
		}
	}

	if !*noSleepFlag {
		if err = display.Sleep(); err != nil {
			_ = display.Close()
			fatal(err)
		}
		logger.Info("display in deep sleep")
	}
	if err = display.Close(); err != nil {
		fatal(err)
	}
}

// override applies the flags that were given on the command line.
func override(cfg *config.Config) {
	changed := flag.CommandLine.Changed
	if changed("width") {
		cfg.Panel.Width = *widthFlag
	}
	if changed("height") {
		cfg.Panel.Height = *heightFlag
	}
	if changed("busy-timeout") {
		cfg.Panel.BusyTimeout = *timeoutFlag
	}
	if changed("spi") {
		cfg.SPI.Port = *portFlag
	}
	if changed("speed") {
		cfg.SPI.Speed = *speedFlag
	}
	if changed("reset") {
		cfg.GPIO.Reset = *resetFlag
	}
	if changed("dc") {
		cfg.GPIO.DC = *dcFlag
	}
	if changed("busy") {
		cfg.GPIO.Busy = *busyFlag
	}
	if changed("cs") {
		cfg.GPIO.CS = *csFlag
	}
	if changed("log-level") {
		cfg.LogLevel = *levelFlag
	}
	cfg.Normalize()
}

func compose(fsys afero.Fs, size image.Rectangle) (image.Image, error) {
	var (
		m     = pixel.NewMonoVerticalMSBImage(size.Dx(), size.Dy())
		ink   color.Color = pixel.Ink
		paper color.Color = pixel.Paper
	)
	if *invertFlag {
		ink, paper = paper, ink
	}
	draw.Fill(m, paper)

	if *imageFlag != "" {
		src, err := imaging.Open(*imageFlag, imaging.AutoOrientation(true))
		if err != nil {
			return nil, err
		}
		src = imaging.Grayscale(imaging.Fit(src, size.Dx(), size.Dy(), imaging.Lanczos))
		if *invertFlag {
			src = imaging.Invert(src)
		}
		var (
			fit = src.Bounds().Size()
			at  = image.Pt((size.Dx()-fit.X)/2, (size.Dy()-fit.Y)/2)
		)
		draw.Draw(m, image.Rectangle{Min: at, Max: at.Add(fit)}, src, src.Bounds().Min, draw.Src)
	} else {
		inner := m.Bounds().Inset(4)
		switch strings.ToLower(*patternFlag) {
		case "none", "":
		case "border":
			draw.Border(m, 2, ink)
			draw.Line(m, inner.Min, inner.Max.Sub(image.Pt(1, 1)), ink)
			draw.Line(m, image.Pt(inner.Min.X, inner.Max.Y-1), image.Pt(inner.Max.X-1, inner.Min.Y), ink)
		case "checker":
			draw.Checker(m, m.Bounds(), 8, ink)
		case "stripes":
			draw.Border(m, 1, ink)
			draw.Stripes(m, inner, 6, ink)
		default:
			return nil, fmt.Errorf("invalid pattern %q specified", *patternFlag)
		}
	}

	if *textFlag != "" {
		var data []byte
		if *fontFlag != "" {
			var err error
			if data, err = afero.ReadFile(fsys, *fontFlag); err != nil {
				return nil, err
			}
		}
		face, err := draw.Face(data, *fontSizeFlag)
		if err != nil {
			return nil, err
		}
		text := strings.ReplaceAll(*textFlag, `\n`, "\n")
		r := draw.Text(m, image.Pt(8, 8), face, text, ink)
		draw.RoundedRectangle(m, r.Inset(-4), 3, ink)
	}

	return m, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}
