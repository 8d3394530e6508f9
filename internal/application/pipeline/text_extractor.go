package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

// ErrUndecodableText is returned for non-PDF blobs that are not valid UTF-8.
var ErrUndecodableText = errors.New("document text is not valid UTF-8")

var (
	pdfMagic = []byte("%PDF-")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// TextExtractor turns raw document blobs into plain text.
type TextExtractor struct{}

// NewTextExtractor creates a text extractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract decodes blob. The hint is a file name, locator or content type.
// PDF pages are joined with a newline and a page without text contributes an empty string.
func (e *TextExtractor) Extract(blob []byte, sourceHint string) (string, error) {
	if isPDF(blob, sourceHint) {
		reader, err := openPDF(blob)
		if err != nil {
			return "", apperrors.New(apperrors.ErrorTypeValidation, "unreadable PDF document", err)
		}
		return extractPages(pdfPages{reader}), nil
	}

	blob = bytes.TrimPrefix(blob, utf8BOM)
	if !utf8.Valid(blob) {
		return "", apperrors.New(apperrors.ErrorTypeValidation, "cannot decode document text", ErrUndecodableText)
	}
	return string(blob), nil
}

func isPDF(blob []byte, hint string) bool {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "application/pdf" || path.Ext(hint) == ".pdf" {
		return true
	}
	return bytes.HasPrefix(blob, pdfMagic)
}

func openPDF(blob []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
}

type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

func extractPages(src pageSource) string {
	n := src.NumPage()
	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		text, err := src.PageText(i)
		if err != nil {
			text = ""
		}
		pages[i-1] = text
	}
	return strings.Join(pages, "\n")
}

type pdfPages struct {
	reader *pdf.Reader
}

func (p pdfPages) NumPage() int {
	return p.reader.NumPage()
}

// PageText recovers from decoder panics on damaged content streams.
func (p pdfPages) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := p.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
