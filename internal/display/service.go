package display

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Service provides formatted terminal output for vault operations. It doubles
// as the engine's progress sink, so long exports and restores surface their
// per-table progress here.
type Service interface {
	// Status messages
	Success(message string)
	Warning(message string)
	Error(message string)
	Info(message string)
	Debug(message string)

	// Structured output
	PrintHeader(title string)
	PrintSummary(title string, pairs []KeyValue)
	PrintTable(headers []string, rows [][]string)

	// Progress reporting
	ShowProgress(current, total int, message string)

	// Configuration
	SetOutput(writer io.Writer)
	IsQuiet() bool
}

// KeyValue is one labeled line of a summary block
type KeyValue struct {
	Key   string
	Value string
}

// Config holds display configuration
type Config struct {
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	UseIcons     bool   `mapstructure:"use_icons" yaml:"use_icons"`
	QuietMode    bool   `mapstructure:"quiet" yaml:"quiet"`
	VerboseMode  bool   `mapstructure:"verbose" yaml:"verbose"`

	// Internal fields (not serialized)
	Writer io.Writer `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the default display configuration
func DefaultConfig() *Config {
	return &Config{
		ColorEnabled: true,
		Theme:        "dark",
		UseIcons:     true,
		Writer:       os.Stdout,
	}
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	var errs []error

	validThemes := []string{"dark", "light", "plain"}
	if !contains(validThemes, c.Theme) {
		errs = append(errs, fmt.Errorf("invalid theme '%s', must be one of: %s",
			c.Theme, strings.Join(validThemes, ", ")))
	}
	if c.VerboseMode && c.QuietMode {
		errs = append(errs, fmt.Errorf("verbose and quiet modes are mutually exclusive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("display configuration validation failed: %v", errs)
	}
	return nil
}

// SetDefaults fills unset fields with defaults
func (c *Config) SetDefaults() {
	if c.Theme == "" {
		c.Theme = "dark"
	}
	if c.Writer == nil {
		c.Writer = os.Stdout
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// service implements the Service interface
type service struct {
	config      *Config
	colors      ColorSystem
	icons       *IconSet
	writer      io.Writer
	progressing bool
}

// NewService creates a display service from the given configuration
func NewService(config *Config) Service {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()

	return &service{
		config: config,
		colors: NewColorSystem(ThemeByName(config.Theme), config.ColorEnabled),
		icons:  NewIconSet(config.UseIcons),
		writer: config.Writer,
	}
}

// Success prints a success message
func (s *service) Success(message string) {
	s.printStatus(s.icons.Success(), message, s.colors.Theme().Success)
}

// Warning prints a warning message
func (s *service) Warning(message string) {
	s.printStatus(s.icons.Warning(), message, s.colors.Theme().Warning)
}

// Error prints an error message. Errors ignore quiet mode.
func (s *service) Error(message string) {
	s.finishProgress()
	prefix := s.colors.Colorize(s.icons.Error(), s.colors.Theme().Error)
	fmt.Fprintf(s.writer, "%s %s\n", prefix, message)
}

// Info prints an informational message
func (s *service) Info(message string) {
	s.printStatus(s.icons.Info(), message, s.colors.Theme().Info)
}

// Debug prints a message only in verbose mode
func (s *service) Debug(message string) {
	if !s.config.VerboseMode || s.config.QuietMode {
		return
	}
	s.printStatus(s.icons.Debug(), message, s.colors.Theme().Muted)
}

// PrintHeader prints a framed title
func (s *service) PrintHeader(title string) {
	if s.config.QuietMode {
		return
	}
	separator := strings.Repeat("=", len(title)+4)
	header := fmt.Sprintf("\n%s\n  %s\n%s\n", separator, title, separator)
	fmt.Fprint(s.writer, s.colors.Colorize(header, s.colors.Theme().Primary))
}

// PrintSummary prints an aligned key/value block under a section title
func (s *service) PrintSummary(title string, pairs []KeyValue) {
	if s.config.QuietMode {
		return
	}
	s.finishProgress()

	sectionTitle := fmt.Sprintf("\n--- %s ---\n", title)
	fmt.Fprint(s.writer, s.colors.Colorize(sectionTitle, s.colors.Theme().Highlight))

	width := 0
	for _, pair := range pairs {
		if len(pair.Key) > width {
			width = len(pair.Key)
		}
	}
	for _, pair := range pairs {
		key := s.colors.Colorize(pair.Key, s.colors.Theme().Muted)
		fmt.Fprintf(s.writer, "  %s%s  %s\n",
			key, strings.Repeat(" ", width-len(pair.Key)), pair.Value)
	}
}

// PrintTable prints an aligned table
func (s *service) PrintTable(headers []string, rows [][]string) {
	if s.config.QuietMode {
		return
	}
	s.finishProgress()

	formatter := NewTableFormatter(s.colors)
	formatter.SetHeaders(headers)
	for _, row := range rows {
		formatter.AddRow(row)
	}
	formatter.RenderTo(s.writer)
}

// ShowProgress renders a single updating progress line
func (s *service) ShowProgress(current, total int, message string) {
	if s.config.QuietMode || total <= 0 {
		return
	}

	percent := current * 100 / total
	bar := renderBar(percent, 24)
	line := fmt.Sprintf("\r%s [%s] %3d%% %s",
		s.icons.Progress(), s.colors.Colorize(bar, s.colors.Theme().Primary), percent, message)
	fmt.Fprint(s.writer, line)
	s.progressing = true

	if current >= total {
		s.finishProgress()
	}
}

// SetOutput redirects all output to the given writer
func (s *service) SetOutput(writer io.Writer) {
	s.writer = writer
	s.config.Writer = writer
}

// IsQuiet reports whether quiet mode is active
func (s *service) IsQuiet() bool {
	return s.config.QuietMode
}

func (s *service) printStatus(icon, message string, color Color) {
	if s.config.QuietMode {
		return
	}
	s.finishProgress()
	fmt.Fprintf(s.writer, "%s %s\n", s.colors.Colorize(icon, color), message)
}

// finishProgress terminates an in-place progress line so following output
// starts on a fresh line
func (s *service) finishProgress() {
	if s.progressing {
		fmt.Fprintln(s.writer)
		s.progressing = false
	}
}

func renderBar(percent, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	filled := percent * width / 100
	return strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
}
