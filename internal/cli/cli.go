// Package cli provides formatted terminal output for ragline commands.
//
// A Writer renders status lines with glyph prefixes and optional color.
// Styling is resolved once at construction: interactive terminals get
// lipgloss-styled output, pipes and CI environments get plain text.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Accent palette. Cyan-leaning so it reads on dark and light terminals.
const (
	colorAccent = "51"  // bright cyan, headers
	colorOK     = "42"  // green
	colorWarn   = "220" // yellow
	colorFail   = "196" // red
	colorDim    = "245" // gray, secondary text
)

// Writer provides formatted output for CLI commands.
// Errors from writing are intentionally ignored for console output.
type Writer struct {
	out    io.Writer
	styled bool

	header lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	dim    lipgloss.Style
}

// New creates a Writer for out. Styling is enabled only when out is an
// interactive terminal, NO_COLOR is unset, and we are not running in CI.
func New(out io.Writer) *Writer {
	return NewStyled(out, IsTTY(out) && !DetectNoColor() && !DetectCI())
}

// NewStyled creates a Writer with styling forced on or off.
func NewStyled(out io.Writer, styled bool) *Writer {
	w := &Writer{out: out, styled: styled}
	if styled {
		w.header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
		w.ok = lipgloss.NewStyle().Foreground(lipgloss.Color(colorOK))
		w.warn = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn))
		w.fail = lipgloss.NewStyle().Foreground(lipgloss.Color(colorFail))
		w.dim = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))
	} else {
		plain := lipgloss.NewStyle()
		w.header, w.ok, w.warn, w.fail, w.dim = plain, plain, plain, plain, plain
	}
	return w
}

// Styled reports whether styling is enabled.
func (w *Writer) Styled() bool {
	return w.styled
}

// Status prints a message prefixed with a glyph. An empty glyph indents
// the message so columns stay aligned.
func (w *Writer) Status(glyph, msg string) {
	if glyph != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", glyph, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf prints a formatted status message with a glyph.
func (w *Writer) Statusf(glyph, format string, args ...any) {
	w.Status(glyph, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status(w.ok.Render("✓"), msg)
}

// Successf prints a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status(w.warn.Render("!"), msg)
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status(w.fail.Render("✗"), msg)
}

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section title.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintf(w.out, "%s\n", w.header.Render(title))
}

// Detail prints an indented secondary line in dim text.
func (w *Writer) Detail(msg string) {
	_, _ = fmt.Fprintf(w.out, "    %s\n", w.dim.Render(msg))
}

// Detailf prints a formatted secondary line.
func (w *Writer) Detailf(format string, args ...any) {
	w.Detail(fmt.Sprintf(format, args...))
}

// Code prints a code block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
