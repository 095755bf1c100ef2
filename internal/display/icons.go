package display

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IconSet renders status icons with ASCII fallbacks for terminals that
// cannot show Unicode.
type IconSet struct {
	unicode bool
}

// NewIconSet creates an icon set. Icons fall back to ASCII markers when
// disabled or when the terminal's locale does not advertise UTF-8.
func NewIconSet(enabled bool) *IconSet {
	return &IconSet{unicode: enabled && terminalSupportsUnicode()}
}

func terminalSupportsUnicode() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	for _, env := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if value := os.Getenv(env); value != "" {
			return strings.Contains(strings.ToUpper(value), "UTF-8") ||
				strings.Contains(strings.ToUpper(value), "UTF8")
		}
	}
	return false
}

func (is *IconSet) pick(unicode, ascii string) string {
	if is.unicode {
		return unicode
	}
	return ascii
}

func (is *IconSet) Success() string  { return is.pick("✓", "[OK]") }
func (is *IconSet) Warning() string  { return is.pick("⚠", "[WARN]") }
func (is *IconSet) Error() string    { return is.pick("✗", "[ERROR]") }
func (is *IconSet) Info() string     { return is.pick("ℹ", "[INFO]") }
func (is *IconSet) Debug() string    { return is.pick("·", "[DEBUG]") }
func (is *IconSet) Progress() string { return is.pick("⏳", "[..]") }
func (is *IconSet) Lock() string     { return is.pick("🔒", "[LOCKED]") }
