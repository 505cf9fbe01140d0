// Package metrics defines observability hooks for publish runs.
package metrics

import "time"

// Recorder receives publish pipeline measurements. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncPublishOutcome(status string)
	IncUpload(success bool)
	IncAssetRewrite(replaced bool)
	IncTokenRefresh(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncPublishOutcome(string)                   {}
func (NoopRecorder) IncUpload(bool)                             {}
func (NoopRecorder) IncAssetRewrite(bool)                       {}
func (NoopRecorder) IncTokenRefresh(bool)                       {}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
