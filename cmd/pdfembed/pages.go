package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drummonds/pdfembed/config"
	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
)

func newPagesCmd(root *rootOptions) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "pages <pdf>",
		Short: "Print the number of pages in a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversionConfig := root.setup()
			if cmd.Flags().Changed("engine") {
				conversionConfig.RenderEngine = engine
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			renderer, err := newRenderer(pdfrenderer.Options{Engine: conversionConfig.RenderEngine, Workers: 1})
			if err != nil {
				return err
			}
			defer renderer.Close()

			doc, err := renderer.Open(data)
			if errors.Is(err, pdfrenderer.ErrEngineBusy) {
				return err
			}
			if err != nil {
				return &conversion.DocumentLoadError{Err: err}
			}
			defer doc.Close()

			fmt.Fprintln(cmd.OutOrStdout(), doc.PageCount())
			return nil
		},
	}

	cmd.Flags().StringVar(&engine, "engine", config.DefaultEngine, "render engine: pdfium or fitz")
	return cmd
}
