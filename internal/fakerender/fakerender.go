// Package fakerender provides a deterministic Renderer for tests. Page n
// renders as an n*10 by 10 pixel image so callers can tell pages apart by
// width alone.
package fakerender

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/drummonds/pdfembed/engine/pdfrenderer"
)

// ErrNotPDF is returned by Open for bytes that do not start with %PDF-
var ErrNotPDF = errors.New("fake renderer: not a PDF")

// Renderer opens any %PDF- prefixed bytes as a document of Pages pages
type Renderer struct {
	Pages int
	// Fail lists pages whose render returns an error
	Fail map[int]error
	// Panic lists pages whose render panics
	Panic map[int]bool
	// Empty lists pages that render a zero sized image, which fails to encode
	Empty map[int]bool
	// OpenErr is returned by every Open when set
	OpenErr error

	mu       sync.Mutex
	opened   int
	closed   int
	rendered []int
}

func (r *Renderer) Open(data []byte) (pdfrenderer.Document, error) {
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		return nil, ErrNotPDF
	}
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
	return &document{r: r}, nil
}

func (r *Renderer) Close() error { return nil }

// Rendered returns the page indexes passed to RenderPage, in call order
func (r *Renderer) Rendered() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.rendered...)
}

// Balanced reports whether every opened document was closed
func (r *Renderer) Balanced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened == r.closed
}

type document struct {
	r *Renderer
}

func (d *document) PageCount() int { return d.r.Pages }

func (d *document) RenderPage(index int, scale float64) (image.Image, error) {
	d.r.mu.Lock()
	d.r.rendered = append(d.r.rendered, index)
	d.r.mu.Unlock()

	if index < 1 || index > d.r.Pages {
		return nil, fmt.Errorf("page %d out of range", index)
	}
	if d.r.Panic[index] {
		panic(fmt.Sprintf("fake renderer exploded on page %d", index))
	}
	if err, ok := d.r.Fail[index]; ok {
		return nil, err
	}
	if d.r.Empty[index] {
		return image.NewRGBA(image.Rect(0, 0, 0, 0)), nil
	}

	img := image.NewRGBA(image.Rect(0, 0, index*10, 10))
	for x := 0; x < index*10; x++ {
		img.Set(x, 5, color.Black)
	}
	return img, nil
}

func (d *document) Close() error {
	d.r.mu.Lock()
	d.r.closed++
	d.r.mu.Unlock()
	return nil
}
