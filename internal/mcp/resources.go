package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/workoutlog/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// kindTotals aggregates the workouts of one activity type.
type kindTotals struct {
	Count           int     `json:"count"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMin     float64 `json:"duration_min"`
	AvgPaceMinPerKm float64 `json:"avg_pace_min_per_km,omitempty"`
	AvgSpeedKmh     float64 `json:"avg_speed_kmh,omitempty"`
}

func summarizeTotals(workouts []models.WorkoutRecord) map[string]*kindTotals {
	out := map[string]*kindTotals{
		string(models.KindRunning): {},
		string(models.KindCycling): {},
	}
	for _, w := range workouts {
		t, ok := out[string(w.Type)]
		if !ok {
			continue
		}
		t.Count++
		t.DistanceKm += w.Distance
		t.DurationMin += w.Duration
	}
	if t := out[string(models.KindRunning)]; t.DistanceKm > 0 {
		t.AvgPaceMinPerKm = models.ComputePace(t.DurationMin, t.DistanceKm)
	}
	if t := out[string(models.KindCycling)]; t.DurationMin > 0 {
		t.AvgSpeedKmh = models.ComputeSpeed(t.DistanceKm, t.DurationMin)
	}
	return out
}

func (h *handlers) workouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.ListWorkouts(ctx, "")
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, workouts)
}

func (h *handlers) totals(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.ListWorkouts(ctx, "")
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, summarizeTotals(workouts))
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
