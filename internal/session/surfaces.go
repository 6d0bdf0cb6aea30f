package session

import (
	"context"

	"github.com/claude/workoutlog/internal/models"
)

// MapSurface is the map the controller places markers on and pans.
type MapSurface interface {
	PanTo(c models.Coords, zoom int)
	PlaceMarker(c models.Coords, label string)
}

// InputSurface is the workout entry form.
type InputSurface interface {
	Show()
	Hide()
	Reset()
	SetInputKind(k models.Kind)
}

// ListSurface renders workout summaries in display order.
type ListSurface interface {
	Render(w *models.Workout)
}

// Reloader is implemented by surfaces that can discard everything they have
// shown. It is called by ResetAll and Restore.
type Reloader interface {
	Reload()
}

// Store is the durable key-value capability the controller persists to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Surfaces bundles the presentation collaborators. Nil members are replaced
// with no-ops. Surfaces are usually pointers; a pointer filling several
// members is reloaded once.
type Surfaces struct {
	Map   MapSurface
	Input InputSurface
	List  ListSurface
}

type nopSurface struct{}

func (nopSurface) PanTo(models.Coords, int)          {}
func (nopSurface) PlaceMarker(models.Coords, string) {}
func (nopSurface) Show()                             {}
func (nopSurface) Hide()                             {}
func (nopSurface) Reset()                            {}
func (nopSurface) SetInputKind(models.Kind)          {}
func (nopSurface) Render(*models.Workout)            {}

func (s Surfaces) withDefaults() Surfaces {
	if s.Map == nil {
		s.Map = nopSurface{}
	}
	if s.Input == nil {
		s.Input = nopSurface{}
	}
	if s.List == nil {
		s.List = nopSurface{}
	}
	return s
}
