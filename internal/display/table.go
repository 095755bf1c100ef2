package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// TableFormatter renders rows as an aligned text table sized to the terminal
type TableFormatter struct {
	colors   ColorSystem
	headers  []string
	rows     [][]string
	maxWidth int
}

// NewTableFormatter creates a formatter bound to the given color system
func NewTableFormatter(colors ColorSystem) *TableFormatter {
	return &TableFormatter{
		colors:   colors,
		maxWidth: detectTerminalWidth(),
	}
}

func detectTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 40 {
		return width
	}
	return 120
}

// SetHeaders sets the column headers
func (tf *TableFormatter) SetHeaders(headers []string) {
	tf.headers = headers
}

// AddRow appends one row; short rows are padded with empty cells
func (tf *TableFormatter) AddRow(row []string) {
	if len(row) < len(tf.headers) {
		padded := make([]string, len(tf.headers))
		copy(padded, row)
		row = padded
	}
	tf.rows = append(tf.rows, row)
}

// RenderTo writes the formatted table to the writer
func (tf *TableFormatter) RenderTo(writer io.Writer) {
	if len(tf.headers) == 0 {
		return
	}

	widths := tf.columnWidths()

	headerCells := make([]string, len(tf.headers))
	for i, header := range tf.headers {
		cell := padCell(header, widths[i])
		headerCells[i] = tf.colors.Colorize(cell, tf.colors.Theme().Highlight)
	}
	fmt.Fprintln(writer, strings.Join(headerCells, "  "))

	separators := make([]string, len(widths))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(writer, strings.Join(separators, "  "))

	for _, row := range tf.rows {
		cells := make([]string, len(tf.headers))
		for i := range tf.headers {
			cells[i] = padCell(truncateCell(row[i], widths[i]), widths[i])
		}
		fmt.Fprintln(writer, strings.Join(cells, "  "))
	}
}

// columnWidths computes per-column widths, shrinking the widest column until
// the table fits the terminal
func (tf *TableFormatter) columnWidths() []int {
	widths := make([]int, len(tf.headers))
	for i, header := range tf.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range tf.rows {
		for i := range tf.headers {
			if width := utf8.RuneCountInString(row[i]); width > widths[i] {
				widths[i] = width
			}
		}
	}

	total := func() int {
		sum := 2 * (len(widths) - 1)
		for _, width := range widths {
			sum += width
		}
		return sum
	}
	for total() > tf.maxWidth {
		widest := 0
		for i, width := range widths {
			if width > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 8 {
			break
		}
		widths[widest]--
	}
	return widths
}

func padCell(text string, width int) string {
	gap := width - utf8.RuneCountInString(text)
	if gap <= 0 {
		return text
	}
	return text + strings.Repeat(" ", gap)
}

func truncateCell(text string, width int) string {
	if utf8.RuneCountInString(text) <= width {
		return text
	}
	runes := []rune(text)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
