// Package conversion turns PDF bytes into an ordered list of encoded page
// images. Pages are rendered one after another; a page that fails is
// reported and skipped, while a document that cannot be opened fails the
// whole run.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// DefaultScale renders pages at twice their nominal resolution
const DefaultScale = 2.0

// Result holds the outcome of one conversion run
type Result struct {
	TotalPages int                `json:"totalPages"`
	Images     []EncodedImage     `json:"images"`
	Failures   []*PageRenderError `json:"failures"`
}

// DataURIs returns the encoded images in page order
func (r *Result) DataURIs() []string {
	uris := make([]string, len(r.Images))
	for i, img := range r.Images {
		uris[i] = img.DataURI
	}
	return uris
}

// Err applies the caller policy that a run without a single image is a failure
func (r *Result) Err() error {
	if len(r.Images) == 0 {
		return ErrNoPagesConverted
	}
	return nil
}

// Converter drives a Renderer page by page. It holds no per-run state and
// may be shared between goroutines.
type Converter struct {
	Renderer pdfrenderer.Renderer
	Encoder  ImageEncoder
	Scale    float64
	// Failures receives contained page errors, nil logs them
	Failures FailureSink
}

// NewConverter creates a converter rendering at DefaultScale into PNG data URIs
func NewConverter(renderer pdfrenderer.Renderer) *Converter {
	return &Converter{
		Renderer: renderer,
		Encoder:  &DataURIEncoder{Format: imaging.PNG, JPEGQuality: 90},
		Scale:    DefaultScale,
	}
}

// Convert rasterizes every page of document in ascending order. progress
// may be nil. It reports (page-1)/total before each page and exactly 1 once
// the loop is done.
//
// Only a load failure, a busy engine or a cancelled ctx is returned as an
// error; a busy engine is never reported as a DocumentLoadError. A page
// that cannot be rendered or encoded is reported to the FailureSink, listed
// in Result.Failures and left out of Result.Images, so the result can hold
// fewer images than TotalPages, or none at all.
func (c *Converter) Convert(ctx context.Context, document []byte, progress ProgressSink) (*Result, error) {
	doc, err := c.Renderer.Open(document)
	if errors.Is(err, pdfrenderer.ErrEngineBusy) {
		return nil, err
	}
	if err != nil {
		return nil, &DocumentLoadError{Err: err}
	}
	defer func() {
		if err := doc.Close(); err != nil {
			Logger.Warn("Unable to close document", "error", err)
		}
	}()

	totalPages := doc.PageCount()
	Logger.Debug("Document loaded", "pages", totalPages)

	failures := c.Failures
	if failures == nil {
		failures = logFailures{}
	}

	result := &Result{
		TotalPages: totalPages,
		Images:     make([]EncodedImage, 0, totalPages),
	}

	for index := 1; index <= totalPages; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress.Report(float64(index-1) / float64(totalPages))
		}

		encoded, pageErr := c.convertPage(doc, index)
		if pageErr != nil {
			result.Failures = append(result.Failures, pageErr)
			failures.PageFailed(pageErr)
			continue
		}
		result.Images = append(result.Images, encoded)
	}

	if progress != nil {
		progress.Report(1)
	}

	Logger.Info("Conversion finished", "pages", totalPages, "converted", len(result.Images), "failed", len(result.Failures))
	return result, nil
}

// convertPage renders and encodes one page. A panic inside the engine is
// turned into a page failure so that one bad page cannot take down the run.
func (c *Converter) convertPage(doc pdfrenderer.Document, index int) (encoded EncodedImage, pageErr *PageRenderError) {
	stage := StageRender
	defer func() {
		if r := recover(); r != nil {
			pageErr = &PageRenderError{Page: index, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	img, err := doc.RenderPage(index, c.scale())
	if err == nil && img == nil {
		err = errors.New("renderer returned no image")
	}
	if err != nil {
		return EncodedImage{}, &PageRenderError{Page: index, Stage: StageRender, Err: err}
	}

	stage = StageEncode
	encoded, err = c.Encoder.Encode(img)
	if err != nil {
		return EncodedImage{}, &PageRenderError{Page: index, Stage: StageEncode, Err: err}
	}
	encoded.Page = index
	return encoded, nil
}

func (c *Converter) scale() float64 {
	if c.Scale <= 0 {
		return DefaultScale
	}
	return c.Scale
}
