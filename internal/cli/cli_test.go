package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsGlyphAndMessage(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a status message
	w.Status(">", "probing search node...")

	// Then: output contains glyph and message
	output := buf.String()
	assert.Contains(t, output, ">")
	assert.Contains(t, output, "probing search node...")
}

func TestWriter_Status_EmptyGlyphIndents(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a status message without a glyph
	w.Status("", "still waiting")

	// Then: the line is indented instead
	assert.True(t, strings.HasPrefix(buf.String(), "  "))
	assert.Contains(t, buf.String(), "still waiting")
}

func TestWriter_Success_PrintsCheckGlyph(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a success message
	w.Successf("ingested %d chunks", 12)

	// Then: output contains glyph and message
	output := buf.String()
	assert.Contains(t, output, "✓")
	assert.Contains(t, output, "ingested 12 chunks")
}

func TestWriter_Warning_PrintsWarnGlyph(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a warning message
	w.Warning("search node unreachable")

	// Then: output contains glyph and message
	output := buf.String()
	assert.Contains(t, output, "!")
	assert.Contains(t, output, "search node unreachable")
}

func TestWriter_Error_PrintsFailGlyph(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing an error message
	w.Error("cannot open vector store")

	// Then: output contains glyph and message
	output := buf.String()
	assert.Contains(t, output, "✗")
	assert.Contains(t, output, "cannot open vector store")
}

func TestWriter_Header_PrintsTitle(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a header
	w.Header("ragline system check")

	// Then: output contains the title
	assert.Contains(t, buf.String(), "ragline system check")
}

func TestWriter_Detail_IndentsLine(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a detail line
	w.Detailf("path: %s", "/tmp/data")

	// Then: the line is indented
	assert.True(t, strings.HasPrefix(buf.String(), "    "))
	assert.Contains(t, buf.String(), "path: /tmp/data")
}

func TestWriter_Code_IndentsEveryLine(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a multi-line code block
	w.Code("embed:\n  provider: openai")

	// Then: each content line is indented
	output := buf.String()
	assert.Contains(t, output, "  embed:")
	assert.Contains(t, output, "    provider: openai")
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	// Given: a plain writer with a buffer
	buf := &bytes.Buffer{}
	w := NewStyled(buf, false)

	// When: printing a newline
	w.Newline()

	// Then: output is a single newline
	assert.Equal(t, "\n", buf.String())
}

func TestNew_WithBuffer_DisablesStyling(t *testing.T) {
	// Given: a bytes.Buffer (not a TTY)
	buf := &bytes.Buffer{}

	// When: constructing with auto-detection
	w := New(buf)

	// Then: styling is off
	assert.False(t, w.Styled())
}

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	// Given: a bytes.Buffer (not a TTY)
	buf := &bytes.Buffer{}

	// When: checking if it's a TTY
	result := IsTTY(buf)

	// Then: returns false
	assert.False(t, result)
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	// Given: nil writer
	// When: checking if it's a TTY
	result := IsTTY(nil)

	// Then: returns false
	assert.False(t, result)
}

func TestDetectNoColor_RespectsEnv(t *testing.T) {
	// Given: NO_COLOR is set
	t.Setenv("NO_COLOR", "1")

	// Then: detection reports true
	assert.True(t, DetectNoColor())
}

func TestDetectCI_RespectsEnv(t *testing.T) {
	// Given: a CI environment variable is set
	t.Setenv("GITHUB_ACTIONS", "true")

	// Then: detection reports true
	assert.True(t, DetectCI())
}
