package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/errors"
)

func TestPages_PlainText(t *testing.T) {
	pages, err := Pages("notes.txt", []byte("alpha beta\ngamma"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "alpha beta\ngamma", pages[0])
}

func TestPages_UnknownExtensionTreatedAsText(t *testing.T) {
	pages, err := Pages("README", []byte("plain content"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "plain content", pages[0])
}

func TestPages_InvalidUTF8Sanitized(t *testing.T) {
	pages, err := Pages("raw.txt", []byte{'o', 'k', 0xff, 0xfe, '!'})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "ok!", pages[0])
}

func TestPages_EmptyFileRejected(t *testing.T) {
	_, err := Pages("empty.txt", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmptyFile, errors.GetCode(err))
}

func TestPages_CorruptPDFRejected(t *testing.T) {
	// PDF magic but no valid structure behind it
	_, err := Pages("broken.pdf", []byte("%PDF-1.7 garbage"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileType, errors.GetCode(err))
}

func TestPages_PDFDetectedByExtension(t *testing.T) {
	// .pdf extension forces the PDF path even without magic bytes
	_, err := Pages("doc.PDF", []byte("not a pdf at all"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileType, errors.GetCode(err))
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "a\nb", JoinPages([]string{"a", "b"}))
	assert.Equal(t, "", JoinPages(nil))
}
