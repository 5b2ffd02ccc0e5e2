package main

import (
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drummonds/pdfembed/config"
	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
	"github.com/drummonds/pdfembed/engine/validation"
	"github.com/drummonds/pdfembed/internal/build"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// newRenderer is replaced in tests
var newRenderer = pdfrenderer.NewRenderer

type rootOptions struct {
	verbose bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pdfembed",
		Short: "Convert PDF pages into images you can paste into an email",
		Long: `pdfembed renders every page of a PDF to an image and writes it out as a
file, an HTML snippet of base64 data URIs, or a zip of both.

A page that fails to render is reported and skipped. The command only fails
when the document cannot be opened or no page converted at all.`,
		Version:      build.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newConvertCmd(opts), newPagesCmd(opts))
	return cmd
}

// setup loads the conversion settings and injects the logger into the packages we drive
func (o *rootOptions) setup() config.ConversionConfig {
	conversionConfig, logger := config.SetupCLI(o.verbose)
	Logger = logger
	conversion.Logger = logger
	validation.Logger = logger
	return conversionConfig
}
