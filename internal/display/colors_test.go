package display

import (
	"strings"
	"testing"
)

func TestColorSystemDisabled(t *testing.T) {
	cs := NewColorSystem(DarkTheme(), false)

	if cs.Enabled() {
		t.Error("Color system should be disabled")
	}
	if got := cs.Colorize("plain", ColorRed); got != "plain" {
		t.Errorf("Disabled Colorize() = %q, want unmodified text", got)
	}
	if got := cs.Sprintf(ColorGreen, "%d rows", 15); got != "15 rows" {
		t.Errorf("Disabled Sprintf() = %q, want plain formatting", got)
	}
}

func TestColorSystemRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	cs := NewColorSystem(DarkTheme(), true)
	if cs.Enabled() {
		t.Error("NO_COLOR must disable colors even when requested")
	}
	if got := cs.Colorize("text", ColorBrightRed); strings.Contains(got, "\x1b[") {
		t.Errorf("Expected no escape sequences under NO_COLOR, got: %q", got)
	}
}

func TestColorSystemDumbTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "dumb")

	cs := NewColorSystem(DarkTheme(), true)
	if cs.Enabled() {
		t.Error("TERM=dumb must disable colors")
	}
}

func TestColorSystemTheme(t *testing.T) {
	theme := LightTheme()
	cs := NewColorSystem(theme, false)

	if cs.Theme().Primary != theme.Primary {
		t.Error("Color system should preserve its theme")
	}
	if cs.Theme().Error != ColorRed {
		t.Errorf("Light theme error color = %v, want ColorRed", cs.Theme().Error)
	}
}

func TestThemeByName(t *testing.T) {
	tests := []struct {
		name string
		want ColorTheme
	}{
		{"dark", DarkTheme()},
		{"light", LightTheme()},
		{"plain", PlainTheme()},
		{"none", PlainTheme()},
		{"unknown", DarkTheme()},
		{"", DarkTheme()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThemeByName(tt.name); got != tt.want {
				t.Errorf("ThemeByName(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPlainThemeHasNoColors(t *testing.T) {
	theme := PlainTheme()
	cs := NewColorSystem(theme, true)

	// ColorNone always passes text through, regardless of terminal support
	if got := cs.Colorize("text", theme.Success); got != "text" {
		t.Errorf("Plain theme Colorize() = %q, want unmodified text", got)
	}
}
