// Package session owns the workout collection for one user session: it turns
// form submissions into workouts, keeps the collection durable and answers
// lookups coming from the map and list surfaces.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/claude/workoutlog/internal/models"
)

// DefaultZoomLevel is the map zoom used for centering and selection.
const DefaultZoomLevel = 13

// Phase is the state of the current submission attempt.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAwaitingInput Phase = "awaiting_input"
)

// State is everything the controller mutates. Workouts are kept in entry order.
type State struct {
	Workouts  []*models.Workout
	Pending   *models.Coords // last unconsumed map click
	InputKind models.Kind    // advisory: which extra field the form shows
	MapReady  bool
}

// RawForm is an unparsed form submission. Extra holds cadence for running and
// elevation gain for cycling.
type RawForm struct {
	Type     string `json:"type"`
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Extra    string `json:"extra"`
}

// Snapshot is a read-only view of the controller state.
type Snapshot struct {
	Phase     Phase          `json:"phase"`
	Pending   *models.Coords `json:"pending,omitempty"`
	InputKind models.Kind    `json:"input_kind"`
	MapReady  bool           `json:"map_ready"`
	Workouts  int            `json:"workouts"`
}

// Controller serializes every operation behind one mutex so callers from
// several goroutines still see one event at a time.
type Controller struct {
	mu       sync.Mutex
	state    State
	store    Store
	key      string
	surfaces Surfaces
	zoom     int
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithZoomLevel sets the zoom used when panning the map.
func WithZoomLevel(z int) Option {
	return func(c *Controller) { c.zoom = z }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller persisting to store under key.
func New(store Store, key string, surfaces Surfaces, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		state:    State{InputKind: models.KindRunning},
		store:    store,
		key:      key,
		surfaces: surfaces.withDefaults(),
		zoom:     DefaultZoomLevel,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load restores the stored collection and renders each workout to the list.
// Markers wait for MapReady. A corrupt blob is logged and treated as empty.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return fmt.Errorf("loading workouts: %w", err)
	}
	if !ok {
		c.log.Info("no stored workouts", "key", c.key)
		c.state.Workouts = nil
		return nil
	}

	if _, err := c.deserializeLocked(blob); err != nil {
		var corrupt *models.StorageCorruptError
		if !errors.As(err, &corrupt) {
			return err
		}
		c.log.Warn("stored workouts are corrupt; starting with empty history", "key", c.key, "error", err)
		c.state.Workouts = nil
		return nil
	}

	for _, w := range c.state.Workouts {
		c.surfaces.List.Render(w)
	}
	c.log.Info("workouts loaded", "count", len(c.state.Workouts))
	return nil
}

// MapReady records that the map surface can take requests and centers it.
// The first call places a marker for every workout already in the collection;
// later calls only recenter, since those markers are already drawn.
func (c *Controller) MapReady(center models.Coords) {
	c.mu.Lock()
	defer c.mu.Unlock()

	first := !c.state.MapReady
	c.state.MapReady = true
	c.surfaces.Map.PanTo(center, c.zoom)
	if !first {
		return
	}
	for _, w := range c.state.Workouts {
		c.surfaces.Map.PlaceMarker(w.Coords, w.Label())
	}
}

// RecordMapClick stores coords as the pending click and shows the form.
// A newer click replaces an unconsumed one.
func (c *Controller) RecordMapClick(coords models.Coords) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Pending = &coords
	c.surfaces.Input.Show()
}

// Cancel drops the pending click without recording anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Pending = nil
	c.surfaces.Input.Hide()
	c.surfaces.Input.Reset()
}

// ToggleInputKind flips which extra field the form shows and returns the new kind.
func (c *Controller) ToggleInputKind() models.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.InputKind = c.state.InputKind.Other()
	c.surfaces.Input.SetInputKind(c.state.InputKind)
	return c.state.InputKind
}

// SubmitWorkout validates a raw submission against the pending click and
// records the resulting workout. On a validation error nothing is mutated.
// If the workout was recorded but could not be written to the store, it is
// returned together with a *models.PersistError.
func (c *Controller) SubmitWorkout(ctx context.Context, form RawForm) (*models.Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Pending == nil {
		return nil, models.ErrNoPendingClick
	}
	w, err := c.buildLocked(*c.state.Pending, form)
	if err != nil {
		return nil, err
	}

	c.commitLocked(w)
	c.state.Pending = nil
	c.surfaces.Input.Hide()
	c.surfaces.Input.Reset()

	c.log.Info("workout recorded", "id", w.ID, "type", w.Kind, "distance_km", w.Distance)
	if err := c.persistLocked(ctx); err != nil {
		return w, err
	}
	return w, nil
}

// SubmitWorkoutAt records a workout at coords in one step, for callers that
// have no map. The pending click and the form are left alone. Persistence
// failures are reported as in SubmitWorkout.
func (c *Controller) SubmitWorkoutAt(ctx context.Context, coords models.Coords, form RawForm) (*models.Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.buildLocked(coords, form)
	if err != nil {
		return nil, err
	}
	c.commitLocked(w)

	c.log.Info("workout recorded", "id", w.ID, "type", w.Kind, "distance_km", w.Distance, "direct", true)
	if err := c.persistLocked(ctx); err != nil {
		return w, err
	}
	return w, nil
}

func (c *Controller) buildLocked(coords models.Coords, form RawForm) (*models.Workout, error) {
	kind, err := models.ParseKind(form.Type)
	if err != nil {
		return nil, &models.ValidationError{Fields: []models.FieldError{{Field: "type", Reason: "must be running or cycling"}}}
	}

	date := c.now().Round(0).Truncate(time.Millisecond)
	w, err := models.New(kind, c.nextIDLocked(date), date, coords,
		coerce(form.Distance), coerce(form.Duration), coerce(form.Extra))
	if err != nil {
		c.log.Info("workout rejected", "type", kind, "error", err)
		return nil, err
	}
	return w, nil
}

// commitLocked appends w and draws it.
func (c *Controller) commitLocked(w *models.Workout) {
	c.state.Workouts = append(c.state.Workouts, w)
	if c.state.MapReady {
		c.surfaces.Map.PlaceMarker(w.Coords, w.Label())
	}
	c.surfaces.List.Render(w)
}

// Locate returns the workout with the given id.
func (c *Controller) Locate(id string) (*models.Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locateLocked(id)
}

// Select locates a workout picked from the list and pans the map to it.
func (c *Controller) Select(id string) (*models.Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.locateLocked(id)
	if err != nil {
		return nil, err
	}
	if c.state.MapReady {
		c.surfaces.Map.PanTo(w.Coords, c.zoom)
	}
	return w, nil
}

// Workouts returns the collection in entry order.
func (c *Controller) Workouts() []*models.Workout {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Workout(nil), c.state.Workouts...)
}

// Snapshot returns the current state summary.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Phase:     PhaseIdle,
		InputKind: c.state.InputKind,
		MapReady:  c.state.MapReady,
		Workouts:  len(c.state.Workouts),
	}
	if c.state.Pending != nil {
		p := *c.state.Pending
		s.Phase = PhaseAwaitingInput
		s.Pending = &p
	}
	return s
}

// SerializeAll encodes the whole collection in entry order.
func (c *Controller) SerializeAll() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.EncodeWorkouts(c.state.Workouts)
}

// DeserializeAll replaces the collection with the workouts decoded from blob.
// Malformed blobs leave the collection untouched.
func (c *Controller) DeserializeAll(blob []byte) ([]*models.Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deserializeLocked(blob)
}

// Restore replaces the collection from blob and writes it to the store, then
// redraws the surfaces. It returns the number of workouts restored. On error
// the session is unchanged.
func (c *Controller) Restore(ctx context.Context, blob []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	workouts, err := models.DecodeWorkouts(blob)
	if err != nil {
		return 0, err
	}
	data, err := models.EncodeWorkouts(workouts)
	if err != nil {
		return 0, err
	}
	if err := c.store.Put(ctx, c.key, data); err != nil {
		return 0, fmt.Errorf("saving restored workouts: %w", err)
	}

	c.state.Workouts = workouts
	c.state.Pending = nil
	c.reloadSurfacesLocked()
	for _, w := range workouts {
		c.surfaces.List.Render(w)
		if c.state.MapReady {
			c.surfaces.Map.PlaceMarker(w.Coords, w.Label())
		}
	}
	c.log.Info("workouts restored", "count", len(workouts))
	return len(workouts), nil
}

// ResetAll deletes the stored blob and clears the session.
func (c *Controller) ResetAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("resetting workouts: %w", err)
	}
	c.state = State{InputKind: models.KindRunning, MapReady: c.state.MapReady}

	c.reloadSurfacesLocked()
	c.log.Info("workouts reset", "key", c.key)
	return nil
}

// reloadSurfacesLocked asks each distinct surface that supports it to drop
// what it has drawn.
func (c *Controller) reloadSurfacesLocked() {
	var done []Reloader
next:
	for _, s := range []any{c.surfaces.Map, c.surfaces.Input, c.surfaces.List} {
		r, ok := s.(Reloader)
		if !ok {
			continue
		}
		for _, d := range done {
			if sameSurface(d, r) {
				continue next
			}
		}
		done = append(done, r)
		r.Reload()
	}
}

// sameSurface reports whether a and b are the same surface. Values whose
// dynamic type cannot be compared are never considered the same.
func sameSurface(a, b Reloader) bool {
	va := reflect.ValueOf(a)
	return va.Type() == reflect.TypeOf(b) && va.Comparable() && a == b
}

func (c *Controller) locateLocked(id string) (*models.Workout, error) {
	for _, w := range c.state.Workouts {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, &models.NotFoundError{ID: id}
}

func (c *Controller) deserializeLocked(blob []byte) ([]*models.Workout, error) {
	workouts, err := models.DecodeWorkouts(blob)
	if err != nil {
		return nil, err
	}
	c.state.Workouts = workouts
	return workouts, nil
}

// persistLocked writes the full collection. The in-memory collection stays
// authoritative when the write fails and the next write replaces the blob.
func (c *Controller) persistLocked(ctx context.Context) error {
	data, err := models.EncodeWorkouts(c.state.Workouts)
	if err != nil {
		c.log.Error("encoding workouts failed", "error", err)
		return &models.PersistError{Err: err}
	}
	if err := c.store.Put(ctx, c.key, data); err != nil {
		c.log.Error("persisting workouts failed", "key", c.key, "error", err)
		return &models.PersistError{Err: err}
	}
	return nil
}

// nextIDLocked derives an id from the last ten digits of the millisecond
// clock, stepping forward until it is unused in the collection.
func (c *Controller) nextIDLocked(date time.Time) string {
	for ms := date.UnixMilli(); ; ms++ {
		id := strconv.FormatInt(ms, 10)
		if len(id) > 10 {
			id = id[len(id)-10:]
		}
		if _, err := c.locateLocked(id); err != nil {
			return id
		}
	}
}

// coerce converts a raw field to a number: blank is 0, unparsable is NaN.
func coerce(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
