package conversion

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDocumentLoad matches any *DocumentLoadError
	ErrDocumentLoad = errors.New("document could not be loaded")
	// ErrNoPagesConverted is the caller-level failure for a run that produced no images
	ErrNoPagesConverted = errors.New("no pages could be converted")
)

// DocumentLoadError is the fatal error returned when the rasterizer cannot parse the bytes
type DocumentLoadError struct {
	Err error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDocumentLoad, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

func (e *DocumentLoadError) Is(target error) bool { return target == ErrDocumentLoad }

// Stage names the step a page failed in
type Stage string

const (
	StageRender Stage = "render"
	StageEncode Stage = "encode"
)

// PageRenderError describes one contained page failure. It is never returned
// from Convert, only reported to the FailureSink and kept in Result.Failures.
type PageRenderError struct {
	Page  int
	Stage Stage
	Err   error
}

func (e *PageRenderError) Error() string {
	return fmt.Sprintf("page %d failed to %s: %v", e.Page, e.Stage, e.Err)
}

func (e *PageRenderError) Unwrap() error { return e.Err }

// MarshalJSON includes the underlying error text, which Err alone would drop
func (e *PageRenderError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Page  int    `json:"page"`
		Stage Stage  `json:"stage"`
		Error string `json:"error"`
	}{e.Page, e.Stage, msg})
}

// UnmarshalJSON restores a failure sent over the API, keeping the error text
func (e *PageRenderError) UnmarshalJSON(data []byte) error {
	var wire struct {
		Page  int    `json:"page"`
		Stage Stage  `json:"stage"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.Page, e.Stage = wire.Page, wire.Stage
	if wire.Error != "" {
		e.Err = errors.New(wire.Error)
	}
	return nil
}
