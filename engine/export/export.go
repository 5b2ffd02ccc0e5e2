// Package export turns converted pages into the shapes users paste or save:
// an HTML snippet for email bodies, a newline separated list of data URIs,
// single image files and a zip of everything.
package export

import (
	"archive/zip"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/drummonds/pdfembed/engine/conversion"
)

// SnippetFileName is the name of the HTML snippet inside an archive
const SnippetFileName = "email.html"

var ErrInvalidDataURI = errors.New("invalid data URI")

// HTMLSnippet renders one block per image, ready to paste into an email body.
// The alt text carries the page number from the source document, so a gap is
// visible when a page failed to convert.
func HTMLSnippet(images []conversion.EncodedImage) string {
	blocks := make([]string, len(images))
	for i, img := range images {
		blocks[i] = fmt.Sprintf(`<div style="margin-bottom: 20px;"><img src="%s" alt="Page %d" style="max-width: 100%%;" /></div>`,
			html.EscapeString(img.DataURI), img.Page)
	}
	return strings.Join(blocks, "\n")
}

// JoinDataURIs returns every data URI on its own line
func JoinDataURIs(images []conversion.EncodedImage) string {
	uris := make([]string, len(images))
	for i, img := range images {
		uris[i] = img.DataURI
	}
	return strings.Join(uris, "\n")
}

// DecodeDataURI splits a base64 data URI into its media type and payload
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mimeType, data, nil
}

// BaseName strips directory and extension from an uploaded file name,
// falling back to "document"
func BaseName(uploaded string) string {
	base := filepath.Base(uploaded)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	return base
}

// ArchiveName derives the zip name from the uploaded file, report.pdf becomes report-images.zip
func ArchiveName(uploaded string) string {
	return BaseName(uploaded) + "-images.zip"
}

// FileName names the file for one page, e.g. page-007.png
func FileName(img conversion.EncodedImage) string {
	return fmt.Sprintf("page-%03d.%s", img.Page, extension(img.MIMEType))
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	}
	return "bin"
}

// WriteArchive writes a zip holding every page image plus the HTML snippet
func WriteArchive(w io.Writer, images []conversion.EncodedImage) error {
	zw := zip.NewWriter(w)
	modified := time.Now()

	for _, img := range images {
		_, data, err := DecodeDataURI(img.DataURI)
		if err != nil {
			return fmt.Errorf("page %d: %w", img.Page, err)
		}
		// images are already compressed
		f, err := zw.CreateHeader(&zip.FileHeader{Name: FileName(img), Method: zip.Store, Modified: modified})
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
	}

	f, err := zw.CreateHeader(&zip.FileHeader{Name: SnippetFileName, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, HTMLSnippet(images)); err != nil {
		return err
	}
	return zw.Close()
}
