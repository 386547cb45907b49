package track

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/uvoxid/core"
	"github.com/signalsfoundry/uvoxid/model"
	"github.com/signalsfoundry/uvoxid/timectrl"
)

// Scenario defaults.
const (
	DefaultStep      = time.Minute
	DefaultSteps     = 60
	DefaultPrecision = 30
)

// Scenario is a tracking run: when it starts, how it steps and what it follows.
type Scenario struct {
	Start     time.Time
	Step      time.Duration
	Steps     int
	Mode      timectrl.Mode
	Precision int
	Objects   []ObjectDefinition
}

// ObjectDefinition describes one tracked object. Exactly one of the TLE pair or
// Position is set.
type ObjectDefinition struct {
	ID      string
	Name    string
	Type    string
	NoradID uint32
	TLE1    string
	TLE2    string

	Position *core.Address
}

// MotionSource reports how the object moves.
func (o ObjectDefinition) MotionSource() model.MotionSource {
	if o.Position != nil {
		return model.MotionSourceStatic
	}
	return model.MotionSourceSpacetrack
}

// Propagator builds the propagator for the object.
func (o ObjectDefinition) Propagator() (Propagator, error) {
	if o.Position != nil {
		return StaticPropagator{Address: *o.Position}, nil
	}
	p, err := NewSGP4Propagator(o.TLE1, o.TLE2)
	if err != nil {
		return nil, fmt.Errorf("object %q: %w", o.ID, err)
	}
	return p, nil
}

// internal YAML shapes – keep them unexported so we're free to evolve them.
type scenarioYAML struct {
	Start     string       `yaml:"start"`
	Step      string       `yaml:"step"`
	Steps     int          `yaml:"steps"`
	Duration  string       `yaml:"duration"`
	Mode      string       `yaml:"mode"`
	Precision *int         `yaml:"precision"`
	Objects   []objectYAML `yaml:"objects"`
}

type objectYAML struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Type     string        `yaml:"type"`
	Norad    uint32        `yaml:"norad"`
	TLE1     string        `yaml:"tle1"`
	TLE2     string        `yaml:"tle2"`
	Position *positionYAML `yaml:"position"`
}

type positionYAML struct {
	Frame    uint64 `yaml:"frame"`
	RadiusUM uint64 `yaml:"r_um"`
	Lat      int64  `yaml:"lat_code"`
	Lon      int64  `yaml:"lon_code"`
}

// LoadScenarioFile reads a YAML scenario from path.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()
	return LoadScenario(f)
}

// LoadScenario reads a YAML scenario from r. Unknown keys are rejected.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("LoadScenario: empty document")
		}
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	sc := &Scenario{
		Step:      DefaultStep,
		Steps:     payload.Steps,
		Precision: DefaultPrecision,
	}

	if payload.Start == "" {
		sc.Start = time.Now().UTC().Truncate(time.Second)
	} else {
		start, err := time.Parse(time.RFC3339, payload.Start)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: start: %w", err)
		}
		sc.Start = start.UTC()
	}

	if payload.Step != "" {
		step, err := time.ParseDuration(payload.Step)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: step: %w", err)
		}
		sc.Step = step
	}
	if sc.Step <= 0 {
		return nil, fmt.Errorf("LoadScenario: step must be positive, got %s", sc.Step)
	}

	if payload.Duration != "" {
		if payload.Steps != 0 {
			return nil, fmt.Errorf("LoadScenario: set steps or duration, not both")
		}
		d, err := time.ParseDuration(payload.Duration)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: duration: %w", err)
		}
		sc.Steps = int(d / sc.Step)
	}
	if sc.Steps < 0 {
		return nil, fmt.Errorf("LoadScenario: steps must not be negative")
	}
	if sc.Steps == 0 {
		sc.Steps = DefaultSteps
	}

	mode, err := timectrl.ParseMode(strings.ToLower(payload.Mode))
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	sc.Mode = mode

	if payload.Precision != nil {
		sc.Precision = *payload.Precision
	}
	if _, err := core.Truncate(core.Address{}, sc.Precision); err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	seen := make(map[string]struct{}, len(payload.Objects))
	for i, obj := range payload.Objects {
		if obj.ID == "" {
			return nil, fmt.Errorf("LoadScenario: object %d has empty id", i)
		}
		if _, dup := seen[obj.ID]; dup {
			return nil, fmt.Errorf("LoadScenario: duplicate object id %q", obj.ID)
		}
		seen[obj.ID] = struct{}{}

		hasTLE := obj.TLE1 != "" || obj.TLE2 != ""
		switch {
		case hasTLE && obj.Position != nil:
			return nil, fmt.Errorf("LoadScenario: object %q has both a TLE and a position", obj.ID)
		case !hasTLE && obj.Position == nil:
			return nil, fmt.Errorf("LoadScenario: object %q needs a TLE or a position", obj.ID)
		}

		def := ObjectDefinition{
			ID:      obj.ID,
			Name:    obj.Name,
			Type:    obj.Type,
			NoradID: obj.Norad,
			TLE1:    obj.TLE1,
			TLE2:    obj.TLE2,
		}
		if obj.Position != nil {
			pos := core.Normalize(core.New(obj.Position.Frame, obj.Position.RadiusUM, obj.Position.Lat, obj.Position.Lon))
			def.Position = &pos
		}
		sc.Objects = append(sc.Objects, def)
	}
	if len(sc.Objects) == 0 {
		return nil, fmt.Errorf("LoadScenario: no objects")
	}

	return sc, nil
}
