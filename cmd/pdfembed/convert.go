package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drummonds/pdfembed/config"
	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/export"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
	"github.com/drummonds/pdfembed/engine/validation"
)

type convertOptions struct {
	out      string
	scale    float64
	engine   string
	format   string
	quality  int
	maxWidth int
	maxMB    int
	maxPages int
	html     bool
	zip      bool
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <pdf>",
		Short: "Render every page of a PDF to an image file",
		Example: `  pdfembed convert report.pdf
  pdfembed convert report.pdf --out images --format jpeg --quality 80 --html --zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversionConfig := root.setup()
			opts.apply(cmd.Flags().Changed, &conversionConfig)
			return runConvert(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], conversionConfig, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.out, "out", "o", "", "output directory (default <name>-images)")
	flags.Float64Var(&opts.scale, "scale", config.DefaultRenderScale, "render scale, 1.0 is 72 DPI")
	flags.StringVar(&opts.engine, "engine", config.DefaultEngine, "render engine: pdfium or fitz")
	flags.StringVar(&opts.format, "format", config.DefaultImageFormat, "image format: png or jpeg")
	flags.IntVar(&opts.quality, "quality", 90, "JPEG quality 1-100")
	flags.IntVar(&opts.maxWidth, "max-width", 0, "downsize wider images to this many pixels, 0 keeps the rendered width")
	flags.IntVar(&opts.maxMB, "max-size", config.DefaultMaxUploadMB, "refuse files larger than this many MB, 0 disables the check")
	flags.IntVar(&opts.maxPages, "max-pages", 0, "refuse documents with more pages, 0 disables the check")
	flags.BoolVar(&opts.html, "html", false, "also write "+export.SnippetFileName+" with every image inlined")
	flags.BoolVar(&opts.zip, "zip", false, "also write a zip of the images and the HTML snippet")
	return cmd
}

// apply lets explicitly set flags override the environment
func (o *convertOptions) apply(changed func(string) bool, c *config.ConversionConfig) {
	if changed("scale") {
		c.RenderScale = o.scale
	}
	if changed("engine") {
		c.RenderEngine = o.engine
	}
	if changed("format") {
		c.ImageFormat = o.format
	}
	if changed("quality") {
		c.JPEGQuality = o.quality
	}
	if changed("max-width") {
		c.MaxImageWidth = o.maxWidth
	}
}

func runConvert(ctx context.Context, stdout, stderr io.Writer, path string, c config.ConversionConfig, opts *convertOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	upload := validation.Upload{FileName: filepath.Base(path)}
	limits := validation.Limits{MaxBytes: int64(opts.maxMB) << 20, MaxPages: opts.maxPages}
	if err := validation.Check(upload, data, limits); err != nil {
		return err
	}

	encoder, err := conversion.NewDataURIEncoder(c.ImageFormat, c.JPEGQuality, c.MaxImageWidth)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(pdfrenderer.Options{Engine: c.RenderEngine, Workers: 1})
	if err != nil {
		return err
	}
	defer renderer.Close()

	failures := &failureReport{}
	converter := &conversion.Converter{
		Renderer: renderer,
		Encoder:  encoder,
		Scale:    c.RenderScale,
		Failures: failures,
	}

	Logger.Debug("Converting", "file", path, "engine", c.RenderEngine, "scale", c.RenderScale, "format", c.ImageFormat)
	result, err := converter.Convert(ctx, data, newProgress(stderr, upload.FileName))
	if err != nil {
		return err
	}
	failures.Print(stderr)
	if err := result.Err(); err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = export.BaseName(path) + "-images"
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}

	for _, img := range result.Images {
		_, payload, err := export.DecodeDataURI(img.DataURI)
		if err != nil {
			return fmt.Errorf("page %d: %w", img.Page, err)
		}
		if err := os.WriteFile(filepath.Join(out, export.FileName(img)), payload, 0o644); err != nil {
			return err
		}
	}

	if opts.html {
		snippet := filepath.Join(out, export.SnippetFileName)
		if err := os.WriteFile(snippet, []byte(export.HTMLSnippet(result.Images)), 0o644); err != nil {
			return err
		}
	}

	if opts.zip {
		if err := writeArchive(filepath.Join(out, export.ArchiveName(path)), result.Images); err != nil {
			return err
		}
	}

	summary := color.New(color.FgGreen, color.Bold)
	summary.Fprintf(stdout, "Converted %d of %d pages into %s\n", len(result.Images), result.TotalPages, out)
	return nil
}

func writeArchive(path string, images []conversion.EncodedImage) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteArchive(f, images); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
