package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WorkoutRecord is the persisted shape of a workout. It carries field values
// only; a restored record is converted back to a Workout without re-running
// the numeric business rules.
type WorkoutRecord struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Coords      []float64 `json:"coords"`
	Distance    float64   `json:"distance"`
	Duration    float64   `json:"duration"`
	Type        Kind      `json:"type"`
	Description string    `json:"description"`

	Cadence       *float64 `json:"cadence,omitempty"`
	Pace          *float64 `json:"pace,omitempty"`
	ElevationGain *float64 `json:"elevationGain,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
}

// ToRecord converts a live workout into its persisted shape.
func ToRecord(w *Workout) WorkoutRecord {
	r := WorkoutRecord{
		ID:          w.ID,
		Date:        w.Date,
		Coords:      []float64{w.Coords[0], w.Coords[1]},
		Distance:    w.Distance,
		Duration:    w.Duration,
		Type:        w.Kind,
		Description: w.Description,
	}
	if w.Running != nil {
		cadence, pace := w.Running.Cadence, w.Running.Pace
		r.Cadence, r.Pace = &cadence, &pace
	}
	if w.Cycling != nil {
		elev, speed := w.Cycling.ElevationGain, w.Cycling.Speed
		r.ElevationGain, r.Speed = &elev, &speed
	}
	return r
}

// checkShape reports the first structural problem with a record, or "".
func (r WorkoutRecord) checkShape() string {
	switch {
	case r.ID == "":
		return "missing id"
	case r.Date.IsZero():
		return "missing date"
	case len(r.Coords) != 2:
		return fmt.Sprintf("coords must have 2 elements, got %d", len(r.Coords))
	case !(Coords{r.Coords[0], r.Coords[1]}).Valid():
		return "coords out of range"
	case r.Description == "":
		return "missing description"
	}

	running := r.Cadence != nil || r.Pace != nil
	cycling := r.ElevationGain != nil || r.Speed != nil
	switch r.Type {
	case KindRunning:
		if cycling {
			return "running record carries cycling fields"
		}
		if r.Cadence == nil || r.Pace == nil {
			return "running record needs cadence and pace"
		}
	case KindCycling:
		if running {
			return "cycling record carries running fields"
		}
		if r.ElevationGain == nil || r.Speed == nil {
			return "cycling record needs elevationGain and speed"
		}
	default:
		return fmt.Sprintf("unknown type %q", r.Type)
	}
	return ""
}

// FromRecord restores a workout from its persisted shape. Only the shape is
// checked; stored derived values are taken as-is.
func FromRecord(r WorkoutRecord) (*Workout, error) {
	if reason := r.checkShape(); reason != "" {
		return nil, errors.New(reason)
	}
	w := &Workout{
		ID:          r.ID,
		Date:        r.Date,
		Coords:      Coords{r.Coords[0], r.Coords[1]},
		Distance:    r.Distance,
		Duration:    r.Duration,
		Kind:        r.Type,
		Description: r.Description,
	}
	switch r.Type {
	case KindRunning:
		w.Running = &RunningMetrics{Cadence: *r.Cadence, Pace: *r.Pace}
	case KindCycling:
		w.Cycling = &CyclingMetrics{ElevationGain: *r.ElevationGain, Speed: *r.Speed}
	}
	return w, nil
}

// EncodeWorkouts serializes the ordered collection as a JSON array of records.
func EncodeWorkouts(workouts []*Workout) ([]byte, error) {
	records := make([]WorkoutRecord, len(workouts))
	for i, w := range workouts {
		records[i] = ToRecord(w)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding workouts: %w", err)
	}
	return data, nil
}

// DecodeWorkouts is the inverse of EncodeWorkouts. An empty or "null" blob
// decodes to no workouts. Any malformed record rejects the whole blob with a
// StorageCorruptError.
func DecodeWorkouts(blob []byte) ([]*Workout, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &StorageCorruptError{Index: -1, Reason: "not a JSON array", Err: err}
	}

	workouts := make([]*Workout, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, msg := range raw {
		var r WorkoutRecord
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, &StorageCorruptError{Index: i, Err: err}
		}
		var present struct {
			Distance *float64 `json:"distance"`
			Duration *float64 `json:"duration"`
		}
		if err := json.Unmarshal(msg, &present); err != nil {
			return nil, &StorageCorruptError{Index: i, Err: err}
		}
		switch {
		case present.Distance == nil:
			return nil, &StorageCorruptError{Index: i, Reason: "missing distance"}
		case present.Duration == nil:
			return nil, &StorageCorruptError{Index: i, Reason: "missing duration"}
		}
		w, err := FromRecord(r)
		if err != nil {
			return nil, &StorageCorruptError{Index: i, Reason: err.Error()}
		}
		if seen[w.ID] {
			return nil, &StorageCorruptError{Index: i, Reason: fmt.Sprintf("duplicate id %q", w.ID)}
		}
		seen[w.ID] = true
		workouts = append(workouts, w)
	}
	return workouts, nil
}
