package pdfrenderer

import (
	"errors"
	"testing"
	"time"

	"github.com/drummonds/pdfembed/internal/testpdf"
)

func TestNewRendererUnknownEngine(t *testing.T) {
	_, err := NewRenderer(Options{Engine: "ghostscript"})
	if !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("Expected ErrUnknownEngine, got %v", err)
	}
}

func TestScaleToDPI(t *testing.T) {
	tests := []struct {
		scale float64
		want  float64
	}{
		{1, 72},
		{2, 144},
		{0.5, 36},
		{0, 72},
		{-3, 72},
	}
	for _, tt := range tests {
		if got := scaleToDPI(tt.scale); got != tt.want {
			t.Errorf("scaleToDPI(%v) = %v, want %v", tt.scale, got, tt.want)
		}
	}
}

func TestCheckPageIndex(t *testing.T) {
	if err := checkPageIndex(1, 3); err != nil {
		t.Errorf("Expected page 1 of 3 to be valid, got %v", err)
	}
	if err := checkPageIndex(3, 3); err != nil {
		t.Errorf("Expected page 3 of 3 to be valid, got %v", err)
	}
	if err := checkPageIndex(0, 3); err == nil {
		t.Error("Expected page 0 to be rejected")
	}
	if err := checkPageIndex(4, 3); err == nil {
		t.Error("Expected page 4 of 3 to be rejected")
	}
}

// TestPDFiumRendererRendersPages runs the WebAssembly engine against a generated document
func TestPDFiumRendererRendersPages(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDFium integration test in short mode")
	}

	renderer, err := NewPDFiumRenderer(1)
	if err != nil {
		t.Fatalf("Failed to create PDFium renderer: %v", err)
	}
	defer renderer.Close()

	doc, err := renderer.Open(testpdf.Document(2))
	if err != nil {
		t.Fatalf("Failed to open document: %v", err)
	}
	defer doc.Close()

	if doc.PageCount() != 2 {
		t.Fatalf("Expected 2 pages, got %d", doc.PageCount())
	}

	img, err := doc.RenderPage(1, 2.0)
	if err != nil {
		t.Fatalf("Failed to render page 1: %v", err)
	}
	// US Letter at 144 DPI is 1224x1584
	bounds := img.Bounds()
	if bounds.Dx() < 1200 || bounds.Dy() < 1500 {
		t.Errorf("Expected roughly 1224x1584 pixels, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	if _, err := doc.RenderPage(3, 2.0); err == nil {
		t.Error("Expected out of range page to fail")
	}
}

// TestPDFiumRendererBusy holds the only instance open and checks the next
// Open reports a busy engine rather than a bad document
func TestPDFiumRendererBusy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDFium integration test in short mode")
	}

	renderer, err := NewPDFiumRenderer(1)
	if err != nil {
		t.Fatalf("Failed to create PDFium renderer: %v", err)
	}
	defer renderer.Close()
	renderer.timeout = 200 * time.Millisecond

	held, err := renderer.Open(testpdf.Document(1))
	if err != nil {
		t.Fatalf("Failed to open document: %v", err)
	}

	if _, err := renderer.Open(testpdf.Document(2)); !errors.Is(err, ErrEngineBusy) {
		t.Fatalf("Expected ErrEngineBusy while the instance is held, got %v", err)
	}

	if err := held.Close(); err != nil {
		t.Fatalf("Failed to close document: %v", err)
	}
	doc, err := renderer.Open(testpdf.Document(2))
	if err != nil {
		t.Fatalf("Expected Open to succeed once the instance is free, got %v", err)
	}
	doc.Close()
}

func TestPDFiumRendererRejectsGarbage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDFium integration test in short mode")
	}

	renderer, err := NewPDFiumRenderer(1)
	if err != nil {
		t.Fatalf("Failed to create PDFium renderer: %v", err)
	}
	defer renderer.Close()

	if _, err := renderer.Open([]byte("this is not a pdf")); err == nil {
		t.Error("Expected garbage bytes to fail to open")
	}
}

func TestCheckEngine(t *testing.T) {
	for _, name := range []string{"", "pdfium", "PDFium", "fitz", "mupdf"} {
		if err := CheckEngine(name); err != nil {
			t.Errorf("Expected %q to be accepted, got %v", name, err)
		}
	}
	if err := CheckEngine("poppler"); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("Expected ErrUnknownEngine, got %v", err)
	}
}
