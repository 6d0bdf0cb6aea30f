package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
	"github.com/go-chi/chi/v5"
)

// maxImportBytes bounds an uploaded workouts blob.
const maxImportBytes = 10 << 20

type coordsRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (c coordsRequest) coords() (models.Coords, bool) {
	if c.Lat == nil || c.Lng == nil {
		return models.Coords{}, false
	}
	return models.Coords{*c.Lat, *c.Lng}, true
}

// rawValue keeps a JSON scalar as the text a form field would hold, so
// numbers and strings both reach the controller's coercion unchanged.
type rawValue string

func (v *rawValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = rawValue(s)
		return nil
	}
	if string(b) == "null" {
		*v = ""
		return nil
	}
	*v = rawValue(b)
	return nil
}

// submitRequest is a form submission. Lat and Lng, when both set, record the
// workout there directly instead of at the pending map click.
type submitRequest struct {
	coordsRequest
	Type          string   `json:"type"`
	Distance      rawValue `json:"distance"`
	Duration      rawValue `json:"duration"`
	Cadence       rawValue `json:"cadence"`
	ElevationGain rawValue `json:"elevationGain"`
}

func (r submitRequest) form() session.RawForm {
	extra := r.Cadence
	if k, err := models.ParseKind(r.Type); err == nil && k == models.KindCycling {
		extra = r.ElevationGain
	}
	return session.RawForm{
		Type:     r.Type,
		Distance: string(r.Distance),
		Duration: string(r.Duration),
		Extra:    string(extra),
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "after must be a non-negative integer"})
			return
		}
		after = parsed
	}
	epoch, cmds := s.outbox.Since(after)
	writeJSON(w, http.StatusOK, map[string]any{
		"epoch":    epoch,
		"commands": cmds,
	})
}

func (s *Server) handleMapReady(w http.ResponseWriter, r *http.Request) {
	center := s.center
	if r.ContentLength != 0 {
		var req coordsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
		if c, ok := req.coords(); ok {
			if !c.Valid() {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
				return
			}
			center = c
		}
	}
	s.session.MapReady(center)
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleMapClick(w http.ResponseWriter, r *http.Request) {
	var req coordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	c, ok := req.coords()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng are required"})
		return
	}
	if !c.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
		return
	}
	s.session.RecordMapClick(c)
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.session.Cancel()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	kind := s.session.ToggleInputKind()
	writeJSON(w, http.StatusOK, map[string]any{
		"input_kind":  kind,
		"extra_field": kind.ExtraField(),
	})
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	workouts := s.session.Workouts()
	records := make([]models.WorkoutRecord, 0, len(workouts))
	var kind models.Kind
	if raw := r.URL.Query().Get("type"); raw != "" {
		k, err := models.ParseKind(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be running or cycling"})
			return
		}
		kind = k
	}
	for _, wk := range workouts {
		if kind != "" && wk.Kind != kind {
			continue
		}
		records = append(records, models.ToRecord(wk))
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSubmitWorkout(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	var (
		workout *models.Workout
		err     error
	)
	if c, ok := req.coords(); ok {
		if !c.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
			return
		}
		workout, err = s.session.SubmitWorkoutAt(r.Context(), c, req.form())
	} else {
		workout, err = s.session.SubmitWorkout(r.Context(), req.form())
	}
	var pe *models.PersistError
	if errors.As(err, &pe) && workout != nil {
		s.log.Error("workout not durable", "id", workout.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   pe.Error(),
			"durable": false,
			"workout": models.ToRecord(workout),
		})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.ToRecord(workout))
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	workout, err := s.session.Locate(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ToRecord(workout))
}

func (s *Server) handleSelectWorkout(w http.ResponseWriter, r *http.Request) {
	workout, err := s.session.Select(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ToRecord(workout))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	blob, err := s.session.SerializeAll()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="workouts.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return
	}
	n, err := s.session.Restore(r.Context(), blob)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("workouts imported", "count", n)
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ResetAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		ve      *models.ValidationError
		nf      *models.NotFoundError
		corrupt *models.StorageCorruptError
		pe      *models.PersistError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "Inputs have to be positive numbers",
			"fields": ve.Fields,
		})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nf.Error()})
	case errors.Is(err, models.ErrNoPendingClick):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "click the map before submitting a workout"})
	case errors.As(err, &corrupt):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": corrupt.Error()})
	case errors.As(err, &pe):
		s.log.Error("request not durable", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": pe.Error(), "durable": false})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
