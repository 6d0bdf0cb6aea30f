package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
	"github.com/claude/workoutlog/internal/storage"
	"github.com/claude/workoutlog/internal/surface"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore, *surface.Outbox) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	outbox := surface.NewOutbox(0)
	ctrl := session.New(store, "workouts", session.Surfaces{Map: outbox, Input: outbox, List: outbox}, log)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(ctrl, outbox, models.Coords{51.5, -0.12}, testAPIKey, log), store, outbox
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

// TestSubmitWorkoutFlow verifies click then submit creates a workout, returns
// 201 with derived metrics and leaves the session idle.
func TestSubmitWorkoutFlow(t *testing.T) {
	s, store, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":51.5,"lng":-0.12}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("click status = %d, want 200", rec.Code)
	}
	var snap session.Snapshot
	decode(t, rec, &snap)
	if snap.Phase != session.PhaseAwaitingInput {
		t.Errorf("phase = %q, want awaiting_input", snap.Phase)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"running","distance":"5.2","duration":24,"cadence":"178"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var got models.WorkoutRecord
	decode(t, rec, &got)
	if got.Type != "running" || got.Pace == nil || *got.Pace < 4.61 || *got.Pace > 4.62 {
		t.Errorf("record = %+v", got)
	}

	if _, ok, _ := store.Get(context.Background(), "workouts"); !ok {
		t.Error("workout was not persisted")
	}

	rec = do(t, s, http.MethodGet, "/api/v1/session", "")
	decode(t, rec, &snap)
	if snap.Phase != session.PhaseIdle || snap.Workouts != 1 {
		t.Errorf("session = %+v", snap)
	}
}

// TestSubmitWorkoutInvalid verifies invalid numbers yield 422 with the
// failing fields listed.
func TestSubmitWorkoutInvalid(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":1,"lng":2}`)

	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"cycling","distance":-5,"duration":"abc","elevationGain":"0"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var body struct {
		Fields []models.FieldError `json:"fields"`
	}
	decode(t, rec, &body)
	if len(body.Fields) != 2 || body.Fields[0].Field != "distance" || body.Fields[1].Field != "duration" {
		t.Errorf("fields = %+v", body.Fields)
	}
}

// TestSubmitWorkoutWithoutClick verifies a submit with no pending click is a
// conflict.
func TestSubmitWorkoutWithoutClick(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"running","distance":5,"duration":25,"cadence":170}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestSubmitWorkoutDirect verifies a submission carrying coordinates is
// recorded without a prior map click.
func TestSubmitWorkoutDirect(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{"lat":48.85,"lng":2.35,"type":"cycling","distance":27,"duration":95,"elevationGain":0}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var got models.WorkoutRecord
	decode(t, rec, &got)
	if len(got.Coords) != 2 || got.Coords[0] != 48.85 || got.ElevationGain == nil || *got.ElevationGain != 0 {
		t.Errorf("record = %+v", got)
	}
}

// TestSubmitWorkoutBadJSON verifies malformed bodies are rejected with 400.
func TestSubmitWorkoutBadJSON(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestMapClickValidation verifies missing or out-of-range coordinates are
// rejected before reaching the session.
func TestMapClickValidation(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, body := range []string{`{"lat":1}`, `{"lat":91,"lng":0}`, `not json`} {
		rec := do(t, s, http.MethodPost, "/api/v1/map/click", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("click %s status = %d, want 400", body, rec.Code)
		}
	}
}

// TestGetWorkout verifies lookup by id and 404 for unknown ids.
func TestGetWorkout(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":1,"lng":2}`)
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"cycling","distance":27,"duration":95,"elevationGain":523}`)
	var created models.WorkoutRecord
	decode(t, rec, &created)

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.WorkoutRecord
	decode(t, rec, &got)
	if got.ID != created.ID || got.Speed == nil {
		t.Errorf("got %+v", got)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

// TestListWorkoutsFilter verifies the type query parameter filters the list.
func TestListWorkoutsFilter(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":1,"lng":2}`)
	do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"running","distance":5,"duration":25,"cadence":170}`)
	do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":1,"lng":2}`)
	do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"cycling","distance":20,"duration":60,"elevationGain":100}`)

	var all, cycling []models.WorkoutRecord
	decode(t, do(t, s, http.MethodGet, "/api/v1/workouts", ""), &all)
	decode(t, do(t, s, http.MethodGet, "/api/v1/workouts?type=cycling", ""), &cycling)
	if len(all) != 2 || len(cycling) != 1 || cycling[0].Type != "cycling" {
		t.Errorf("all=%d cycling=%+v", len(all), cycling)
	}
}

// TestListWorkoutsFilterCase verifies the type filter accepts any letter case
// and rejects unknown types.
func TestListWorkoutsFilterCase(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/workouts", `{"lat":1,"lng":2,"type":"running","distance":5,"duration":25,"cadence":170}`)
	do(t, s, http.MethodPost, "/api/v1/workouts", `{"lat":1,"lng":2,"type":"cycling","distance":20,"duration":60,"elevationGain":100}`)

	var running []models.WorkoutRecord
	decode(t, do(t, s, http.MethodGet, "/api/v1/workouts?type=Running", ""), &running)
	if len(running) != 1 || running[0].Type != models.KindRunning {
		t.Errorf("running = %+v, want the one running workout", running)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/workouts?type=rowing", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}
}

// brokenStore accepts reads but fails every write.
type brokenStore struct{ *storage.MemoryStore }

func (brokenStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

// TestSubmitWorkoutNotDurable verifies a workout that could not be saved is
// answered with 500, marked not durable and still returned to the client.
func TestSubmitWorkoutNotDurable(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	outbox := surface.NewOutbox(0)
	ctrl := session.New(brokenStore{storage.NewMemoryStore()}, "workouts",
		session.Surfaces{Map: outbox, Input: outbox, List: outbox}, log)
	s := New(ctrl, outbox, models.Coords{51.5, -0.12}, testAPIKey, log)

	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{"lat":1,"lng":2,"type":"running","distance":5,"duration":25,"cadence":170}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp struct {
		Error   string               `json:"error"`
		Durable *bool                `json:"durable"`
		Workout models.WorkoutRecord `json:"workout"`
	}
	decode(t, rec, &resp)
	if resp.Durable == nil || *resp.Durable {
		t.Errorf("durable = %v, want false", resp.Durable)
	}
	if resp.Workout.ID == "" || !strings.Contains(resp.Error, "disk full") {
		t.Errorf("resp = %+v, want workout and store error", resp)
	}
	if len(ctrl.Workouts()) != 1 {
		t.Error("workout should stay in the session")
	}
}

// TestCommandsFeed verifies map readiness and selection show up in the
// command outbox.
func TestCommandsFeed(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/map/ready", "")
	do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":1,"lng":2}`)
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"running","distance":5,"duration":25,"cadence":170}`)
	var created models.WorkoutRecord
	decode(t, rec, &created)
	do(t, s, http.MethodPost, "/api/v1/workouts/"+created.ID+"/select", "")

	var feed struct {
		Epoch    string            `json:"epoch"`
		Commands []surface.Command `json:"commands"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/v1/commands", ""), &feed)
	if feed.Epoch == "" || len(feed.Commands) == 0 {
		t.Fatalf("feed = %+v", feed)
	}
	first, last := feed.Commands[0], feed.Commands[len(feed.Commands)-1]
	if first.Type != surface.CmdPanTo || first.Coords == nil || first.Coords.Lat() != 51.5 {
		t.Errorf("first command = %+v, want pan to default center", first)
	}
	if last.Type != surface.CmdPanTo || last.Zoom != session.DefaultZoomLevel {
		t.Errorf("last command = %+v, want pan to selection", last)
	}

	var tail struct {
		Commands []surface.Command `json:"commands"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/v1/commands?after="+strconv.FormatInt(last.Seq, 10), ""), &tail)
	if len(tail.Commands) != 0 {
		t.Errorf("tail = %+v, want empty", tail.Commands)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/commands?after=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative after status = %d, want 400", rec.Code)
	}
}

// TestToggleInputKind verifies the toggle endpoint flips the form's extra
// field.
func TestToggleInputKind(t *testing.T) {
	s, _, _ := newTestServer(t)
	var body map[string]string
	decode(t, do(t, s, http.MethodPost, "/api/v1/form/toggle", ""), &body)
	if body["input_kind"] != "cycling" || body["extra_field"] != "elevationGain" {
		t.Errorf("toggle = %+v", body)
	}
}

// TestResetRequiresAPIKey verifies reset is protected and clears storage when
// authorized.
func TestResetRequiresAPIKey(t *testing.T) {
	s, store, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/map/click", `{"lat":1,"lng":2}`)
	do(t, s, http.MethodPost, "/api/v1/workouts", `{"type":"running","distance":5,"duration":25,"cadence":170}`)

	if rec := do(t, s, http.MethodDelete, "/api/v1/workouts", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/workouts", "", "X-API-Key", "wrong"); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/workouts", "", "X-API-Key", testAPIKey); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200", rec.Code)
	}
	if _, ok, _ := store.Get(context.Background(), "workouts"); ok {
		t.Error("stored blob survived reset")
	}
}

// TestImportExport verifies an imported browser export is served back by the
// export endpoint, and that a corrupt blob is rejected.
func TestImportExport(t *testing.T) {
	s, _, _ := newTestServer(t)
	blob := `[{"date":"2024-04-14T09:30:00.123Z","id":"3087000123","coords":[51.5,-0.12],"distance":5.2,"duration":24,"type":"running","cadence":178,"pace":4.615384615384615,"description":"Running on April 14"}]`

	rec := do(t, s, http.MethodPost, "/api/v1/workouts/import", blob, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
	var res map[string]int
	decode(t, rec, &res)
	if res["imported"] != 1 {
		t.Errorf("imported = %d, want 1", res["imported"])
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"3087000123"`)) {
		t.Errorf("export missing imported workout: %s", rec.Body)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/workouts/import", `{"not":"an array"}`, "X-API-Key", testAPIKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("corrupt import status = %d, want 400", rec.Code)
	}
}
