package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color identifies a terminal foreground color
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightCyan
)

// ColorTheme assigns colors to the message kinds the service emits
type ColorTheme struct {
	Primary   Color
	Success   Color
	Warning   Color
	Error     Color
	Info      Color
	Muted     Color
	Highlight Color
}

// ColorSystem applies theme colors to text, degrading to plain text when the
// terminal does not support color or the user disabled it.
type ColorSystem interface {
	Colorize(text string, color Color) string
	Sprintf(color Color, format string, args ...interface{}) string
	Enabled() bool
	Theme() ColorTheme
}

type colorSystem struct {
	theme    ColorTheme
	enabled  bool
	profile  termenv.Profile
	colorMap map[Color]*color.Color
}

// NewColorSystem creates a color system. Colors render only when enabled is
// true AND the terminal supports them; NO_COLOR and TERM=dumb always win,
// FORCE_COLOR overrides terminal detection.
func NewColorSystem(theme ColorTheme, enabled bool) ColorSystem {
	return &colorSystem{
		theme:   theme,
		enabled: enabled && terminalSupportsColor(),
		profile: termenv.ColorProfile(),
		colorMap: map[Color]*color.Color{
			ColorRed:          color.New(color.FgRed),
			ColorGreen:        color.New(color.FgGreen),
			ColorYellow:       color.New(color.FgYellow),
			ColorBlue:         color.New(color.FgBlue),
			ColorMagenta:      color.New(color.FgMagenta),
			ColorCyan:         color.New(color.FgCyan),
			ColorWhite:        color.New(color.FgWhite),
			ColorBrightRed:    color.New(color.FgHiRed),
			ColorBrightGreen:  color.New(color.FgHiGreen),
			ColorBrightYellow: color.New(color.FgHiYellow),
			ColorBrightBlue:   color.New(color.FgHiBlue),
			ColorBrightCyan:   color.New(color.FgHiCyan),
		},
	}
}

func terminalSupportsColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Colorize applies the color when enabled, otherwise returns text unchanged
func (cs *colorSystem) Colorize(text string, clr Color) string {
	if !cs.enabled || clr == ColorNone {
		return text
	}
	if colorFunc, ok := cs.colorMap[clr]; ok {
		return colorFunc.Sprint(text)
	}
	return text
}

// Sprintf formats and colorizes in one step
func (cs *colorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Colorize(fmt.Sprintf(format, args...), clr)
}

// Enabled reports whether colors are actually rendered
func (cs *colorSystem) Enabled() bool {
	return cs.enabled
}

// Theme returns the active theme
func (cs *colorSystem) Theme() ColorTheme {
	return cs.theme
}

// DarkTheme suits dark terminal backgrounds
func DarkTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBrightBlue,
		Success:   ColorBrightGreen,
		Warning:   ColorBrightYellow,
		Error:     ColorBrightRed,
		Info:      ColorCyan,
		Muted:     ColorWhite,
		Highlight: ColorBrightCyan,
	}
}

// LightTheme suits light terminal backgrounds
func LightTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBlue,
		Success:   ColorGreen,
		Warning:   ColorYellow,
		Error:     ColorRed,
		Info:      ColorCyan,
		Muted:     ColorMagenta,
		Highlight: ColorBlue,
	}
}

// PlainTheme renders everything uncolored
func PlainTheme() ColorTheme {
	return ColorTheme{}
}

// ThemeByName maps a configuration string to a theme, defaulting to dark
func ThemeByName(name string) ColorTheme {
	switch name {
	case "light":
		return LightTheme()
	case "plain", "none":
		return PlainTheme()
	default:
		return DarkTheme()
	}
}
