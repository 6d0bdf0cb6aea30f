package mcp

import (
	"context"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
)

// DataSource abstracts where workouts live for MCP tools. Local (an in-process
// session controller) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	ListWorkouts(ctx context.Context, kind string) ([]models.WorkoutRecord, error)
	LocateWorkout(ctx context.Context, id string) (*models.WorkoutRecord, error)
	// RecordWorkout may return a record and a *models.PersistError together.
	RecordWorkout(ctx context.Context, at models.Coords, form session.RawForm) (*models.WorkoutRecord, error)
}

// Local serves MCP tools straight from a session controller.
type Local struct {
	ctrl *session.Controller
}

// Compile-time check: *Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal wraps ctrl.
func NewLocal(ctrl *session.Controller) *Local {
	return &Local{ctrl: ctrl}
}

func (l *Local) ListWorkouts(_ context.Context, kind string) ([]models.WorkoutRecord, error) {
	var want models.Kind
	if kind != "" {
		k, err := models.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		want = k
	}

	workouts := l.ctrl.Workouts()
	out := make([]models.WorkoutRecord, 0, len(workouts))
	for _, w := range workouts {
		if want != "" && w.Kind != want {
			continue
		}
		out = append(out, models.ToRecord(w))
	}
	return out, nil
}

func (l *Local) LocateWorkout(_ context.Context, id string) (*models.WorkoutRecord, error) {
	w, err := l.ctrl.Locate(id)
	if err != nil {
		return nil, err
	}
	r := models.ToRecord(w)
	return &r, nil
}

// RecordWorkout returns the record together with a *models.PersistError when
// the workout was recorded but not saved.
func (l *Local) RecordWorkout(ctx context.Context, at models.Coords, form session.RawForm) (*models.WorkoutRecord, error) {
	w, err := l.ctrl.SubmitWorkoutAt(ctx, at, form)
	if w == nil {
		return nil, err
	}
	r := models.ToRecord(w)
	return &r, err
}
