package engine

import (
	"fmt"

	"github.com/drummonds/pdfembed/engine/conversion"
	"github.com/drummonds/pdfembed/engine/pdfrenderer"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	cfg := serverHandler.ServerConfig

	if serverHandler.Jobs == nil || serverHandler.Converter == nil {
		return fmt.Errorf("server handler is missing its job store or converter")
	}
	if err := renderEngineChecks(cfg.RenderEngine); err != nil {
		return err
	}
	if cfg.RenderScale <= 0 || cfg.RenderScale > 8 {
		Logger.Error("Render scale out of range", "scale", cfg.RenderScale)
		return fmt.Errorf("render scale must be between 0 and 8, got %v", cfg.RenderScale)
	}
	if cfg.MaxUploadBytes <= 0 {
		Logger.Error("Upload limit must be positive", "maxUploadBytes", cfg.MaxUploadBytes)
		return fmt.Errorf("upload limit must be positive, got %d", cfg.MaxUploadBytes)
	}
	if _, err := conversion.NewDataURIEncoder(cfg.ImageFormat, cfg.JPEGQuality, cfg.MaxImageWidth); err != nil {
		Logger.Error("Image format not supported", "format", cfg.ImageFormat, "error", err)
		return err
	}
	if cfg.MaxPages == 0 {
		Logger.Info("No page limit configured")
	}

	Logger.Info("Startup checks passed",
		"engine", cfg.RenderEngine,
		"scale", cfg.RenderScale,
		"format", cfg.ImageFormat,
		"maxUploadBytes", cfg.MaxUploadBytes,
		"maxPages", cfg.MaxPages,
		"jobStore", cfg.JobStore)
	return nil
}

// renderEngineChecks makes sure the configured engine name is one we can build
func renderEngineChecks(engine string) error {
	if err := pdfrenderer.CheckEngine(engine); err != nil {
		Logger.Error("Unknown render engine", "engine", engine)
		return err
	}
	return nil
}
