// Package surface plays the map, form and list surfaces for remote clients:
// every request the session controller makes is appended to an outbox that a
// browser polls and replays.
package surface

import (
	"sync"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
	"github.com/google/uuid"
)

// Command types.
const (
	CmdPanTo        = "pan_to"
	CmdPlaceMarker  = "place_marker"
	CmdShowForm     = "show_form"
	CmdHideForm     = "hide_form"
	CmdResetForm    = "reset_form"
	CmdSetInputKind = "set_input_kind"
	CmdRender       = "render"
)

const defaultLimit = 1000

// Command is one surface request.
type Command struct {
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Coords  *models.Coords `json:"coords,omitempty"`
	Zoom    int            `json:"zoom,omitempty"`
	Label   string         `json:"label,omitempty"`
	Kind    models.Kind    `json:"kind,omitempty"`
	Summary *Summary       `json:"summary,omitempty"`
}

// Outbox implements every session surface by recording commands.
type Outbox struct {
	mu       sync.Mutex
	epoch    string
	seq      int64
	commands []Command
	limit    int
}

var (
	_ session.MapSurface   = (*Outbox)(nil)
	_ session.InputSurface = (*Outbox)(nil)
	_ session.ListSurface  = (*Outbox)(nil)
	_ session.Reloader     = (*Outbox)(nil)
)

// NewOutbox keeps at most limit commands (1000 when limit <= 0).
func NewOutbox(limit int) *Outbox {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Outbox{epoch: uuid.NewString(), limit: limit}
}

func (o *Outbox) push(c Command) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seq++
	c.Seq = o.seq
	o.commands = append(o.commands, c)
	if over := len(o.commands) - o.limit; over > 0 {
		o.commands = append([]Command(nil), o.commands[over:]...)
	}
}

// Since returns the commands with Seq greater than after, plus the current
// epoch. A changed epoch tells the client to discard what it has drawn.
func (o *Outbox) Since(after int64) (string, []Command) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := []Command{}
	for _, c := range o.commands {
		if c.Seq > after {
			out = append(out, c)
		}
	}
	return o.epoch, out
}

// Reload drops every command and starts a new epoch.
func (o *Outbox) Reload() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.epoch = uuid.NewString()
	o.seq = 0
	o.commands = nil
}

// PanTo queues a request to center the map on c at the given zoom.
func (o *Outbox) PanTo(c models.Coords, zoom int) {
	o.push(Command{Type: CmdPanTo, Coords: &c, Zoom: zoom})
}

// PlaceMarker queues a labelled marker at c.
func (o *Outbox) PlaceMarker(c models.Coords, label string) {
	o.push(Command{Type: CmdPlaceMarker, Coords: &c, Label: label})
}

// Show queues a request to reveal the entry form.
func (o *Outbox) Show() { o.push(Command{Type: CmdShowForm}) }

// Hide queues a request to hide the entry form.
func (o *Outbox) Hide() { o.push(Command{Type: CmdHideForm}) }

// Reset queues a request to clear the form's fields.
func (o *Outbox) Reset() { o.push(Command{Type: CmdResetForm}) }

// SetInputKind queues a switch of the form's extra field to the one for k.
func (o *Outbox) SetInputKind(k models.Kind) {
	o.push(Command{Type: CmdSetInputKind, Kind: k})
}

// Render queues a list entry summarizing w.
func (o *Outbox) Render(w *models.Workout) {
	s := Summarize(w)
	o.push(Command{Type: CmdRender, Kind: w.Kind, Summary: &s})
}
