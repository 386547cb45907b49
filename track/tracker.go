package track

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/uvoxid/core"
	"github.com/signalsfoundry/uvoxid/internal/logging"
	"github.com/signalsfoundry/uvoxid/internal/observability"
	"github.com/signalsfoundry/uvoxid/kb"
	"github.com/signalsfoundry/uvoxid/model"
	"github.com/signalsfoundry/uvoxid/timectrl"
)

const halfTurn = 180_000_000

// Sample is one object's position at one step, with the displacement from
// its previous position.
type Sample struct {
	Step     int
	Time     time.Time
	ObjectID string
	Address  core.Address
	Delta    core.Delta

	Bucket              string
	BucketChanged       bool
	AntimeridianCrossed bool
}

// MetricsRecorder receives tracker measurements.
type MetricsRecorder interface {
	ObserveSample(object string)
	IncPropagationErrors(object string)
	IncAntimeridianCrossings()
	IncBucketChanges()
	ObserveStep(d time.Duration)
	SetTrackedObjects(n int)
}

// TrackerOption customises Tracker construction.
type TrackerOption func(*Tracker)

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithTracer overrides the tracer used for step spans.
func WithTracer(tr trace.Tracer) TrackerOption {
	return func(t *Tracker) {
		t.tracer = tr
	}
}

// WithHistory keeps every sample in memory for Samples.
func WithHistory() TrackerOption {
	return func(t *Tracker) {
		t.keepHistory = true
	}
}

// WithSampleHandler calls fn with every sample as it is taken.
func WithSampleHandler(fn func(Sample)) TrackerOption {
	return func(t *Tracker) {
		t.onSample = fn
	}
}

// Tracker moves objects held in a knowledge base along their propagators.
type Tracker struct {
	store    *kb.KnowledgeBase
	log      logging.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer
	onSample func(Sample)

	mu          sync.Mutex
	order       []string
	props       map[string]Propagator
	keepHistory bool
	history     []Sample
}

// NewTracker wires a tracker over store.
func NewTracker(store *kb.KnowledgeBase, log logging.Logger, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = logging.Noop()
	}
	t := &Tracker{
		store: store,
		log:   log,
		props: make(map[string]Propagator),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.tracer == nil {
		t.tracer = observability.Tracer()
	}
	return t
}

// Track places obj at its position at time at and follows it on later steps.
func (t *Tracker) Track(obj model.TrackedObject, p Propagator, at time.Time) error {
	pos, err := p.Propagate(at)
	if err != nil {
		return fmt.Errorf("initial position of %q: %w", obj.ID, err)
	}
	obj.Position = pos
	if err := t.store.AddObject(obj); err != nil {
		return err
	}

	t.mu.Lock()
	t.order = append(t.order, obj.ID)
	t.props[obj.ID] = p
	n := len(t.order)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetTrackedObjects(n)
	}
	t.log.Debug(context.Background(), "tracking object",
		logging.String("object", obj.ID),
		logging.String("motion_source", obj.MotionSource.String()),
		logging.String("position", pos.Hex()),
	)
	return nil
}

// LoadScenario tracks every object in sc from sc.Start.
func (t *Tracker) LoadScenario(sc *Scenario) error {
	for _, def := range sc.Objects {
		p, err := def.Propagator()
		if err != nil {
			return err
		}
		obj := model.TrackedObject{
			ID:           def.ID,
			Name:         def.Name,
			Type:         def.Type,
			MotionSource: def.MotionSource(),
			NoradID:      def.NoradID,
		}
		if err := t.Track(obj, p, sc.Start); err != nil {
			return err
		}
	}
	return nil
}

// Step propagates every tracked object to now. Objects whose propagation
// fails keep their previous position and are left out of the result.
func (t *Tracker) Step(ctx context.Context, step int, now time.Time) ([]Sample, error) {
	ctx, span := t.tracer.Start(ctx, "track.Step", trace.WithAttributes(
		attribute.Int("track.step", step),
		attribute.String("track.time", now.Format(time.RFC3339)),
	))
	defer span.End()
	began := time.Now()

	t.mu.Lock()
	ids := append([]string(nil), t.order...)
	props := make([]Propagator, len(ids))
	for i, id := range ids {
		props[i] = t.props[id]
	}
	t.mu.Unlock()

	samples := make([]Sample, 0, len(ids))
	for i, id := range ids {
		pos, err := props[i].Propagate(now)
		if err != nil {
			if t.metrics != nil {
				t.metrics.IncPropagationErrors(id)
			}
			t.log.Warn(ctx, "propagation failed",
				logging.String("object", id),
				logging.Int("step", step),
				logging.Err(err),
			)
			continue
		}

		ev, err := t.store.UpdatePosition(id, pos)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return samples, err
		}
		bucket, _ := t.store.BucketKey(id)

		s := Sample{
			Step:                step,
			Time:                now,
			ObjectID:            id,
			Address:             pos,
			Delta:               ev.Delta,
			Bucket:              bucket,
			BucketChanged:       ev.BucketChanged,
			AntimeridianCrossed: crossesAntimeridian(ev.Previous, pos),
		}
		samples = append(samples, s)
		t.record(ctx, s)
	}

	t.mu.Lock()
	if t.keepHistory {
		t.history = append(t.history, samples...)
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ObserveStep(time.Since(began))
	}
	span.SetAttributes(attribute.Int("track.samples", len(samples)))
	return samples, nil
}

func (t *Tracker) record(ctx context.Context, s Sample) {
	if t.metrics != nil {
		t.metrics.ObserveSample(s.ObjectID)
		if s.AntimeridianCrossed {
			t.metrics.IncAntimeridianCrossings()
		}
		if s.BucketChanged {
			t.metrics.IncBucketChanges()
		}
	}
	if t.onSample != nil {
		t.onSample(s)
	}
	t.log.Debug(ctx, "sampled",
		logging.String("object", s.ObjectID),
		logging.Int("step", s.Step),
		logging.Uint64("r_um", s.Address.RadiusUM),
		logging.Int64("lat", s.Address.Lat),
		logging.Int64("lon", s.Address.Lon),
		logging.String("delta", s.Delta.String()),
	)
}

// Listener adapts Step to a timectrl listener.
func (t *Tracker) Listener(ctx context.Context) timectrl.Listener {
	return func(step int, now time.Time) error {
		_, err := t.Step(ctx, step, now)
		return err
	}
}

// Run drives the tracker from tc for steps ticks.
func (t *Tracker) Run(ctx context.Context, tc *timectrl.TimeController, steps int) error {
	tc.AddListener(t.Listener(ctx))
	t.log.Info(ctx, "tracking started",
		logging.Int("objects", len(t.ObjectIDs())),
		logging.Int("steps", steps),
		logging.String("mode", tc.Mode.String()),
	)
	if err := tc.Run(ctx, steps); err != nil {
		return err
	}
	t.log.Info(ctx, "tracking finished", logging.Int("steps", tc.Step()))
	return nil
}

// ObjectIDs returns tracked ids in the order they were added.
func (t *Tracker) ObjectIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

// Samples returns the recorded history. It is empty unless WithHistory was set.
func (t *Tracker) Samples() []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sample(nil), t.history...)
}

// crossesAntimeridian reports whether the short way from prev to next
// passes over ±180° longitude.
func crossesAntimeridian(prev, next core.Address) bool {
	d := next.Lon - prev.Lon
	return d > halfTurn || d < -halfTurn
}
