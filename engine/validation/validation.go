// Package validation checks an upload before it reaches the rasterizer.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// PDFMIMEType is the only media type accepted
const PDFMIMEType = "application/pdf"

var (
	ErrEmptyUpload  = errors.New("uploaded file is empty")
	ErrNotPDF       = errors.New("please select a valid PDF file")
	ErrTooLarge     = errors.New("file size exceeds limit")
	ErrTooManyPages = errors.New("document has too many pages")
)

var pdfMagic = []byte("%PDF-")

// Limits bounds what an upload may contain. Zero values disable a check.
type Limits struct {
	MaxBytes int64
	MaxPages int
}

// Upload is the metadata the client sent alongside the bytes
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
}

// CheckHeader validates the declared type and size without reading the body,
// so oversized uploads can be refused early.
func CheckHeader(upload Upload, limits Limits) error {
	if upload.Size == 0 {
		return ErrEmptyUpload
	}
	if limits.MaxBytes > 0 && upload.Size > limits.MaxBytes {
		return fmt.Errorf("%w: %s is larger than %s", ErrTooLarge, FormatSize(upload.Size), FormatSize(limits.MaxBytes))
	}
	if declared := mediaType(upload.ContentType); declared != "" && !isGeneric(declared) && declared != PDFMIMEType {
		return fmt.Errorf("%w: got %s", ErrNotPDF, declared)
	}
	return nil
}

// Check validates a fully read upload. When the declared type is missing or
// generic the bytes are sniffed instead.
func Check(upload Upload, data []byte, limits Limits) error {
	upload.Size = int64(len(data))
	if err := CheckHeader(upload, limits); err != nil {
		return err
	}

	declared := mediaType(upload.ContentType)
	if declared == "" || isGeneric(declared) {
		if !Sniff(data) {
			return fmt.Errorf("%w: content is %s", ErrNotPDF, http.DetectContentType(data))
		}
	}

	if limits.MaxPages > 0 {
		pages, err := ProbePageCount(data)
		if err != nil {
			// the rasterizer has the final say on whether the file parses
			Logger.Debug("Page count probe failed, leaving it to the renderer", "fileName", upload.FileName, "error", err)
			return nil
		}
		if pages > limits.MaxPages {
			return fmt.Errorf("%w: %d pages, limit is %d", ErrTooManyPages, pages, limits.MaxPages)
		}
	}
	return nil
}

// Sniff reports whether data looks like a PDF
func Sniff(data []byte) bool {
	if http.DetectContentType(data) == PDFMIMEType {
		return true
	}
	// some writers put junk before the header, readers accept it in the first kilobyte
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, pdfMagic)
}

// ProbePageCount reads the page tree with a pure Go parser. It recovers from
// parser panics on malformed input.
func ProbePageCount(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf probe panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	return reader.NumPage(), nil
}

// FormatSize renders a byte count the way the upload form shows limits
func FormatSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	if n >= 1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func isGeneric(mt string) bool {
	return mt == "application/octet-stream" || mt == "binary/octet-stream"
}
