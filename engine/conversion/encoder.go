package conversion

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// EncodedImage is one successfully converted page
type EncodedImage struct {
	// Page is the 1-based page number in the source document
	Page     int    `json:"page"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	DataURI  string `json:"dataUri"`
}

// ImageEncoder turns a rendered page into an EncodedImage. Page is filled in by the caller.
type ImageEncoder interface {
	Encode(img image.Image) (EncodedImage, error)
}

// DataURIEncoder encodes pixels as a base64 data URI
type DataURIEncoder struct {
	Format      imaging.Format
	JPEGQuality int
	// MaxWidth downsizes wider images keeping the aspect ratio, 0 disables it
	MaxWidth int
}

// NewDataURIEncoder builds an encoder from a format name ("png", "jpeg" or "jpg")
func NewDataURIEncoder(format string, jpegQuality, maxWidth int) (*DataURIEncoder, error) {
	f, err := imaging.FormatFromExtension(strings.ToLower(format))
	if err != nil {
		return nil, fmt.Errorf("unsupported image format %q: %w", format, err)
	}
	if f != imaging.PNG && f != imaging.JPEG {
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = 90
	}
	return &DataURIEncoder{Format: f, JPEGQuality: jpegQuality, MaxWidth: maxWidth}, nil
}

// MIMEType returns the media type of the encoder output
func (e *DataURIEncoder) MIMEType() string {
	if e.Format == imaging.JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (e *DataURIEncoder) Encode(img image.Image) (EncodedImage, error) {
	if img == nil {
		return EncodedImage{}, errors.New("nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return EncodedImage{}, fmt.Errorf("empty image bounds %v", bounds)
	}

	if e.MaxWidth > 0 && bounds.Dx() > e.MaxWidth {
		img = imaging.Resize(img, e.MaxWidth, 0, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, e.Format, imaging.JPEGQuality(e.JPEGQuality)); err != nil {
		return EncodedImage{}, fmt.Errorf("failed to encode %s: %w", e.Format, err)
	}

	mimeType := e.MIMEType()
	return EncodedImage{
		MIMEType: mimeType,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		DataURI:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
