package surface

import (
	"strconv"

	"github.com/claude/workoutlog/internal/models"
)

// Detail is one value/unit cell of a list entry.
type Detail struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Summary is a list entry ready to draw.
type Summary struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Details []Detail `json:"details"`
}

// Summarize formats a workout the way the list shows it: distance, duration,
// then the derived metric to one decimal and the variant's extra field.
func Summarize(w *models.Workout) Summary {
	s := Summary{
		ID:    w.ID,
		Kind:  string(w.Kind),
		Title: w.Description,
		Details: []Detail{
			{Value: formatNumber(w.Distance), Unit: "km"},
			{Value: formatNumber(w.Duration), Unit: "min"},
		},
	}
	switch w.Kind {
	case models.KindRunning:
		s.Details = append(s.Details,
			Detail{Value: strconv.FormatFloat(w.Running.Pace, 'f', 1, 64), Unit: "min/km"},
			Detail{Value: formatNumber(w.Running.Cadence), Unit: "spm"},
		)
	case models.KindCycling:
		s.Details = append(s.Details,
			Detail{Value: strconv.FormatFloat(w.Cycling.Speed, 'f', 1, 64), Unit: "km/h"},
			Detail{Value: formatNumber(w.Cycling.ElevationGain), Unit: "m"},
		)
	}
	return s
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
