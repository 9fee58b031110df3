// Package pdftext flattens PDF documents into plain text.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extension is the only file extension accepted at the upload boundary.
const Extension = ".pdf"

// ParseError reports that the input is not a parseable PDF. No partial text
// accompanies it.
type ParseError struct {
	Page int // 1-indexed page that failed, 0 when the document itself is unreadable
	Err  error
}

func (e *ParseError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("parse pdf page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("parse pdf: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsPDFName reports whether filename carries the .pdf extension.
func IsPDFName(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), Extension)
}

// Extract returns the text of every page in order, each followed by a
// newline. A document with zero pages yields "".
func Extract(data []byte) (string, error) {
	return ExtractReader(bytes.NewReader(data), int64(len(data)))
}

// ExtractReader is Extract over an io.ReaderAt of known size.
func ExtractReader(r io.ReaderAt, size int64) (string, error) {
	pages, err := Pages(r, size)
	if err != nil {
		return "", err
	}
	return Join(pages), nil
}

// Join concatenates page texts the way Extract does.
func Join(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

// Pages returns the plain text of each page in page order. Pages without a
// content stream contribute "".
func Pages(r io.ReaderAt, size int64) (pages []string, err error) {
	// The pdf package panics on some malformed object graphs.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = &ParseError{Err: fmt.Errorf("%v", rec)}
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			return nil, &ParseError{Page: pageNum, Err: fmt.Errorf("page missing from page tree")}
		}
		// Font resource names are page-local, so no cache is shared.
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &ParseError{Page: pageNum, Err: err}
		}
		pages = append(pages, text)
	}
	return pages, nil
}
