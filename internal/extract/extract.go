// Package extract turns uploaded files into per-page text for chunking.
// PDFs are extracted page by page; everything else is treated as UTF-8
// text occupying a single page.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ragline/ragline/internal/errors"
)

var pdfMagic = []byte("%PDF-")

// Pages extracts the text of an uploaded file as one string per page.
// The filename is only used for type sniffing.
func Pages(filename string, data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFile, "uploaded file is empty", nil)
	}
	if isPDF(filename, data) {
		return pdfPages(data)
	}
	return []string{strings.ToValidUTF8(string(data), "")}, nil
}

// JoinPages renders the extracted pages the way character counts and
// previews see them.
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n")
}

func isPDF(filename string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, pdfMagic)
}

// pdfPages extracts text per page. Pages that fail to decode contribute an
// empty string so page numbering stays aligned with the source document.
func pdfPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileType,
			fmt.Sprintf("could not parse PDF: %v", err), err)
	}

	n := reader.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
