package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ Recorder = (*Collector)(nil)
var _ Recorder = Nop{}

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFollow(true)
	c.RecordFollow(false)
	c.RecordFollow(true)
	c.RecordPermissionDenied("book", "delete")

	if got := testutil.ToFloat64(c.follows.WithLabelValues("true")); got != 2 {
		t.Errorf("follows{created=true} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.permissionDenied.WithLabelValues("book", "delete")); got != 1 {
		t.Errorf("permission denied = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFeedRead(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "socialapi_feed_reads_total") {
		t.Error("response should contain socialapi_feed_reads_total metric")
	}
}
