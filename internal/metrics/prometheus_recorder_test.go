package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_WritesTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveStageDuration("draft_created", 150*time.Millisecond)
	rec.IncPublishOutcome("published")
	rec.IncPublishOutcome("published")
	rec.IncUpload(true)
	rec.IncUpload(false)
	rec.IncAssetRewrite(false)
	rec.IncTokenRefresh(true)

	path := filepath.Join(t.TempDir(), "wxpublish.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `wxpublish_publish_outcomes_total{status="published"} 2`)
	assert.Contains(t, out, `wxpublish_image_uploads_total{result="failed"} 1`)
	assert.Contains(t, out, `wxpublish_image_uploads_total{result="success"} 1`)
	assert.Contains(t, out, `wxpublish_asset_rewrites_total{result="skipped"} 1`)
	assert.Contains(t, out, `wxpublish_token_refreshes_total{result="success"} 1`)
	assert.Contains(t, out, `wxpublish_stage_duration_seconds_count{stage="draft_created"} 1`)
}

func TestPrometheusRecorder_NilReceiverIsSafe(t *testing.T) {
	var rec *PrometheusRecorder

	assert.NotPanics(t, func() {
		rec.ObserveStageDuration("x", time.Second)
		rec.IncPublishOutcome("failed")
		rec.IncUpload(true)
		rec.IncAssetRewrite(true)
		rec.IncTokenRefresh(false)
	})
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	rec := NewPrometheusRecorder(nil)
	rec.IncPublishOutcome("manual_publish_required")

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wxpublish_publish_outcomes_total{status="manual_publish_required"} 1`)
}
