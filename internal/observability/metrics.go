package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TrackCollector bundles Prometheus metrics for the tracker and exposes a
// /metrics handler for them.
type TrackCollector struct {
	gatherer prometheus.Gatherer

	Samples             *prometheus.CounterVec
	PropagationErrors   *prometheus.CounterVec
	AntimeridianCrosses prometheus.Counter
	BucketChanges       prometheus.Counter
	StepDuration        prometheus.Histogram
	TrackedObjects      prometheus.Gauge
}

// NewTrackCollector registers tracker metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewTrackCollector(reg prometheus.Registerer) (*TrackCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	samples, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uvoxid_track_samples_total",
		Help: "Positions sampled by the tracker, labeled by object.",
	}, []string{"object"}), "uvoxid_track_samples_total")
	if err != nil {
		return nil, err
	}

	propErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uvoxid_track_propagation_errors_total",
		Help: "Failed orbit propagations, labeled by object.",
	}, []string{"object"}), "uvoxid_track_propagation_errors_total")
	if err != nil {
		return nil, err
	}

	antimeridian, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uvoxid_track_antimeridian_crossings_total",
		Help: "Samples whose longitude wrapped across ±180°.",
	}), "uvoxid_track_antimeridian_crossings_total")
	if err != nil {
		return nil, err
	}

	buckets, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uvoxid_track_bucket_changes_total",
		Help: "Samples that moved an object to a different tolerance bucket.",
	}), "uvoxid_track_bucket_changes_total")
	if err != nil {
		return nil, err
	}

	stepDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "uvoxid_track_step_duration_seconds",
		Help:    "Wall-clock time spent propagating all objects for one step.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "uvoxid_track_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	objects, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uvoxid_tracked_objects",
		Help: "Current number of objects held by the tracker.",
	}), "uvoxid_tracked_objects")
	if err != nil {
		return nil, err
	}

	return &TrackCollector{
		gatherer:            gatherer,
		Samples:             samples,
		PropagationErrors:   propErrors,
		AntimeridianCrosses: antimeridian,
		BucketChanges:       buckets,
		StepDuration:        stepDuration,
		TrackedObjects:      objects,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *TrackCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveSample counts one sampled position for object.
func (c *TrackCollector) ObserveSample(object string) {
	if c == nil || c.Samples == nil {
		return
	}
	c.Samples.WithLabelValues(object).Inc()
}

// IncPropagationErrors counts a failed propagation for object.
func (c *TrackCollector) IncPropagationErrors(object string) {
	if c == nil || c.PropagationErrors == nil {
		return
	}
	c.PropagationErrors.WithLabelValues(object).Inc()
}

// IncAntimeridianCrossings increments the longitude wrap counter.
func (c *TrackCollector) IncAntimeridianCrossings() {
	if c == nil || c.AntimeridianCrosses == nil {
		return
	}
	c.AntimeridianCrosses.Inc()
}

// IncBucketChanges increments the bucket change counter.
func (c *TrackCollector) IncBucketChanges() {
	if c == nil || c.BucketChanges == nil {
		return
	}
	c.BucketChanges.Inc()
}

// ObserveStep records the duration of one tracker step.
func (c *TrackCollector) ObserveStep(d time.Duration) {
	if c == nil || c.StepDuration == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
}

// SetTrackedObjects updates the object gauge.
func (c *TrackCollector) SetTrackedObjects(n int) {
	if c == nil || c.TrackedObjects == nil {
		return
	}
	c.TrackedObjects.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
