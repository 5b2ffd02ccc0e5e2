package conversion

// ProgressSink receives the fraction of pages processed, in [0, 1]
type ProgressSink interface {
	Report(fraction float64)
}

// ProgressFunc adapts an ordinary function to a ProgressSink
type ProgressFunc func(fraction float64)

func (f ProgressFunc) Report(fraction float64) { f(fraction) }

// FailureSink is told about every page that could not be converted
type FailureSink interface {
	PageFailed(err *PageRenderError)
}

// FailureFunc adapts an ordinary function to a FailureSink
type FailureFunc func(err *PageRenderError)

func (f FailureFunc) PageFailed(err *PageRenderError) { f(err) }

// logFailures is the default FailureSink
type logFailures struct{}

func (logFailures) PageFailed(err *PageRenderError) {
	Logger.Error("Error processing page", "page", err.Page, "stage", err.Stage, "error", err.Err)
}
