package track

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/uvoxid/core"
	"github.com/signalsfoundry/uvoxid/geom"
	"github.com/signalsfoundry/uvoxid/model"
)

var (
	ErrInvalidTLE  = errors.New("track: invalid TLE")
	ErrPropagation = errors.New("track: propagation failed")
)

const (
	tleLineLen = 69
	kmToM      = 1000.0
)

// Propagator yields an object's address at a simulation time.
type Propagator interface {
	Propagate(t time.Time) (core.Address, error)
}

// StaticPropagator leaves the object at a fixed address.
type StaticPropagator struct {
	Address core.Address
}

// Propagate returns the fixed address.
func (p StaticPropagator) Propagate(time.Time) (core.Address, error) {
	return p.Address, nil
}

// SGP4Propagator uses a TLE and SGP4 to place a satellite in the Earth frame.
type SGP4Propagator struct {
	sat satellite.Satellite
}

// NewSGP4Propagator parses a two-line element set.
func NewSGP4Propagator(line1, line2 string) (p *SGP4Propagator, err error) {
	line1, line2 = strings.TrimRight(line1, " \r\n"), strings.TrimRight(line2, " \r\n")
	if err := validateTLE(line1, line2); err != nil {
		return nil, err
	}
	// go-satellite panics on fields it cannot parse.
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", ErrInvalidTLE, r)
		}
	}()
	return &SGP4Propagator{sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}, nil
}

// Propagate returns the satellite's geocentric address at t. go-satellite
// works in kilometres in an Earth-fixed frame; the address radius is
// measured from the Earth's centre.
func (p *SGP4Propagator) Propagate(t time.Time) (addr core.Address, err error) {
	defer func() {
		if r := recover(); r != nil {
			addr, err = core.Address{}, fmt.Errorf("%w: %v", ErrPropagation, r)
		}
	}()

	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	v := geom.Vec3{X: posECEF.X * kmToM, Y: posECEF.Y * kmToM, Z: posECEF.Z * kmToM}
	if !finite(v) || v.Norm() == 0 {
		return core.Address{}, fmt.Errorf("%w at %s", ErrPropagation, t.Format(time.RFC3339))
	}
	return geom.FromCartesian(model.FrameEarth, v), nil
}

func finite(v geom.Vec3) bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// validateTLE checks line numbers, lengths, matching catalog numbers and the
// modulo-10 checksums.
func validateTLE(line1, line2 string) error {
	if len(line1) != tleLineLen || len(line2) != tleLineLen {
		return fmt.Errorf("%w: lines must be %d characters", ErrInvalidTLE, tleLineLen)
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("%w: lines must start with \"1 \" and \"2 \"", ErrInvalidTLE)
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: catalog numbers %q and %q differ", ErrInvalidTLE, line1[2:7], line2[2:7])
	}
	for i, line := range []string{line1, line2} {
		if want, got := tleChecksum(line), line[tleLineLen-1]; got != '0'+want {
			return fmt.Errorf("%w: line %d checksum %c, want %d", ErrInvalidTLE, i+1, got, want)
		}
	}
	return nil
}

func tleChecksum(line string) byte {
	var sum int
	for i := 0; i < tleLineLen-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return byte(sum % 10)
}
