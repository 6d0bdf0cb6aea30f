package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

// Kind discriminates the workout variants.
type Kind string

const (
	KindRunning Kind = "running"
	KindCycling Kind = "cycling"
)

// Coords is a (latitude, longitude) pair in degrees.
type Coords [2]float64

func (c Coords) Lat() float64 { return c[0] }
func (c Coords) Lng() float64 { return c[1] }

// LatLng converts to an s2 point for geometry.
func (c Coords) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c[0], c[1])
}

// Valid reports whether the pair is a finite, in-range coordinate.
func (c Coords) Valid() bool {
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
		return false
	}
	return c.LatLng().IsValid()
}

// earthRadiusMeters matches the mean radius used by s2 distance helpers.
const earthRadiusMeters = 6371008.8

// DistanceMeters returns the great-circle distance between two points.
func (c Coords) DistanceMeters(o Coords) float64 {
	return c.LatLng().Distance(o.LatLng()).Radians() * earthRadiusMeters
}

// RunningMetrics holds the running-only fields.
type RunningMetrics struct {
	Cadence float64 // steps per minute
	Pace    float64 // minutes per km
}

// CyclingMetrics holds the cycling-only fields.
type CyclingMetrics struct {
	ElevationGain float64 // meters
	Speed         float64 // km per hour
}

// Workout is a recorded activity. Exactly one of Running and Cycling is set,
// matching Kind. All fields are fixed at construction.
type Workout struct {
	ID          string
	Date        time.Time
	Coords      Coords
	Distance    float64 // km
	Duration    float64 // minutes
	Kind        Kind
	Description string

	Running *RunningMetrics
	Cycling *CyclingMetrics
}

// Extra returns the variant-specific input field (cadence or elevation gain).
func (w *Workout) Extra() float64 {
	switch w.Kind {
	case KindRunning:
		return w.Running.Cadence
	case KindCycling:
		return w.Cycling.ElevationGain
	}
	return math.NaN()
}

// Derived returns the variant-specific metric (pace or speed).
func (w *Workout) Derived() float64 {
	switch w.Kind {
	case KindRunning:
		return w.Running.Pace
	case KindCycling:
		return w.Cycling.Speed
	}
	return math.NaN()
}

// Label is the text shown on the workout's map marker.
func (w *Workout) Label() string {
	v, ok := variants[w.Kind]
	if !ok {
		return w.Description
	}
	return v.icon + " " + w.Description
}

// variant is one row of the dispatch table.
type variant struct {
	extraField string
	icon       string
	validExtra func(float64) bool
	derive     func(w *Workout, extra float64)
}

var variants = map[Kind]variant{
	KindRunning: {
		extraField: "cadence",
		icon:       "🏃‍♂️",
		validExtra: func(v float64) bool { return v > 0 },
		derive: func(w *Workout, extra float64) {
			w.Running = &RunningMetrics{Cadence: extra, Pace: ComputePace(w.Duration, w.Distance)}
		},
	},
	KindCycling: {
		extraField: "elevationGain",
		icon:       "🚴‍♀️",
		validExtra: func(v float64) bool { return v >= 0 },
		derive: func(w *Workout, extra float64) {
			w.Cycling = &CyclingMetrics{ElevationGain: extra, Speed: ComputeSpeed(w.Distance, w.Duration)}
		},
	},
}

// ParseKind maps a raw type selector value to a Kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := variants[k]; !ok {
		return "", fmt.Errorf("unknown workout type %q", raw)
	}
	return k, nil
}

// ExtraField names the variant-specific input field for k.
func (k Kind) ExtraField() string {
	return variants[k].extraField
}

// Other returns the opposite variant.
func (k Kind) Other() Kind {
	if k == KindCycling {
		return KindRunning
	}
	return KindCycling
}

// Title returns the kind with its first letter upper-cased.
func (k Kind) Title() string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ComputePace returns minutes per km.
func ComputePace(duration, distance float64) float64 {
	return duration / distance
}

// ComputeSpeed returns km per hour from km and minutes.
func ComputeSpeed(distance, duration float64) float64 {
	return distance / (duration / 60)
}

// Describe renders the human-readable description, e.g. "Running on April 14".
// The month and day are taken in date's own location.
func Describe(kind Kind, date time.Time) string {
	return fmt.Sprintf("%s on %s %d", kind.Title(), date.Month(), date.Day())
}

// Validate checks the numeric preconditions for a kind and returns a
// ValidationError listing every failing field, or nil.
func Validate(kind Kind, distance, duration, extra float64) error {
	v, ok := variants[kind]
	if !ok {
		return &ValidationError{Fields: []FieldError{{Field: "type", Reason: "must be running or cycling"}}}
	}

	var fields []FieldError
	check := func(name string, val float64, ok func(float64) bool, reason string) {
		if !isFinite(val) {
			fields = append(fields, FieldError{Field: name, Reason: "must be a finite number"})
			return
		}
		if !ok(val) {
			fields = append(fields, FieldError{Field: name, Reason: reason})
		}
	}
	positive := func(x float64) bool { return x > 0 }

	check("distance", distance, positive, "must be positive")
	check("duration", duration, positive, "must be positive")
	extraReason := "must be positive"
	if kind == KindCycling {
		extraReason = "must not be negative"
	}
	check(v.extraField, extra, v.validExtra, extraReason)

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// New builds a workout of the given kind. The id must already be unique
// within the caller's collection.
func New(kind Kind, id string, date time.Time, coords Coords, distance, duration, extra float64) (*Workout, error) {
	if err := Validate(kind, distance, duration, extra); err != nil {
		return nil, err
	}
	w := &Workout{
		ID:          id,
		Date:        date,
		Coords:      coords,
		Distance:    distance,
		Duration:    duration,
		Kind:        kind,
		Description: Describe(kind, date),
	}
	variants[kind].derive(w, extra)
	return w, nil
}

// NewRunning builds a running workout.
func NewRunning(id string, date time.Time, coords Coords, distance, duration, cadence float64) (*Workout, error) {
	return New(KindRunning, id, date, coords, distance, duration, cadence)
}

// NewCycling builds a cycling workout.
func NewCycling(id string, date time.Time, coords Coords, distance, duration, elevationGain float64) (*Workout, error) {
	return New(KindCycling, id, date, coords, distance, duration, elevationGain)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
