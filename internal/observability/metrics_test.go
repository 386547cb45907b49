package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestTrackCollectorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackCollector: %v", err)
	}

	collector.ObserveSample("iss")
	collector.ObserveSample("iss")
	collector.IncPropagationErrors("debris")
	collector.IncAntimeridianCrossings()
	collector.IncBucketChanges()
	collector.ObserveStep(2 * time.Millisecond)
	collector.SetTrackedObjects(4)

	if got := testutil.ToFloat64(collector.Samples.WithLabelValues("iss")); got != 2 {
		t.Fatalf("uvoxid_track_samples_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.PropagationErrors.WithLabelValues("debris")); got != 1 {
		t.Fatalf("uvoxid_track_propagation_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.AntimeridianCrosses); got != 1 {
		t.Fatalf("antimeridian crossings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.TrackedObjects); got != 4 {
		t.Fatalf("uvoxid_tracked_objects = %v, want 4", got)
	}
	if count := histogramSampleCount(t, reg, "uvoxid_track_step_duration_seconds", nil); count != 1 {
		t.Fatalf("step duration sample_count = %d, want 1", count)
	}
}

func TestNewTrackCollectorReusesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackCollector: %v", err)
	}
	second, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("second NewTrackCollector: %v", err)
	}

	first.IncBucketChanges()
	if got := testutil.ToFloat64(second.BucketChanges); got != 1 {
		t.Fatalf("shared bucket counter = %v, want 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *TrackCollector
	c.ObserveSample("x")
	c.IncPropagationErrors("x")
	c.IncAntimeridianCrossings()
	c.IncBucketChanges()
	c.ObserveStep(time.Second)
	c.SetTrackedObjects(1)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMetricsHandlerExposesTrackMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackCollector: %v", err)
	}
	collector.ObserveSample("iss")
	collector.IncPropagationErrors("iss")
	collector.SetTrackedObjects(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"uvoxid_track_samples_total",
		"uvoxid_track_propagation_errors_total",
		"uvoxid_track_antimeridian_crossings_total",
		"uvoxid_track_bucket_changes_total",
		"uvoxid_track_step_duration_seconds",
		"uvoxid_tracked_objects 3",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
