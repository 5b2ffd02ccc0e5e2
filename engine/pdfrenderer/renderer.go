package pdfrenderer

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// NominalDPI is the resolution of one PDF user-space unit; scale 1.0 renders at this DPI
const NominalDPI = 72.0

var (
	// ErrUnknownEngine is returned by NewRenderer for an unsupported engine name
	ErrUnknownEngine = errors.New("unknown render engine")
	// ErrEngineBusy is returned by Open when no engine instance became free in time.
	// It says nothing about the document, which can be retried.
	ErrEngineBusy = errors.New("render engine busy")
)

// Renderer opens PDF documents for rasterization
type Renderer interface {
	// Open parses the document bytes. An error wrapping ErrEngineBusy means
	// the engine had no capacity; any other error means the bytes are not a
	// document the engine can read.
	Open(data []byte) (Document, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// Document is an opened PDF whose pages can be rendered one at a time
type Document interface {
	PageCount() int

	// RenderPage rasterizes the 1-based page index at scale times the nominal resolution
	RenderPage(index int, scale float64) (image.Image, error)

	Close() error
}

// Options configures NewRenderer
type Options struct {
	Engine string
	// Workers bounds the number of concurrent PDFium instances
	Workers int
}

// CheckEngine reports ErrUnknownEngine for names NewRenderer cannot build
func CheckEngine(name string) error {
	switch strings.ToLower(name) {
	case "", "pdfium", "fitz", "mupdf":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEngine, name)
}

// NewRenderer creates the renderer named by opts.Engine
func NewRenderer(opts Options) (Renderer, error) {
	if err := CheckEngine(opts.Engine); err != nil {
		return nil, err
	}
	switch strings.ToLower(opts.Engine) {
	case "fitz", "mupdf":
		return NewFitzRenderer()
	default:
		return NewPDFiumRenderer(opts.Workers)
	}
}

// scaleToDPI converts a render scale into the DPI the engines expect
func scaleToDPI(scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	return NominalDPI * scale
}

// checkPageIndex validates a 1-based page index against the page count
func checkPageIndex(index, pageCount int) error {
	if index < 1 || index > pageCount {
		return fmt.Errorf("page %d out of range [1, %d]", index, pageCount)
	}
	return nil
}
