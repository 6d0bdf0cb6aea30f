package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
)

// HTTPClient implements DataSource by calling the workoutlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// workouts live on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// statusError is a non-2xx API response.
type statusError struct {
	path   string
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.path, e.status, bytes.TrimSpace(e.body))
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{path: path, status: resp.StatusCode, body: respBody}
	}
	return respBody, nil
}

func (c *HTTPClient) ListWorkouts(ctx context.Context, kind string) ([]models.WorkoutRecord, error) {
	params := url.Values{}
	if kind != "" {
		params.Set("type", kind)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", params, nil)
	if err != nil {
		return nil, err
	}

	var workouts []models.WorkoutRecord
	if err := json.Unmarshal(body, &workouts); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return workouts, nil
}

func (c *HTTPClient) LocateWorkout(ctx context.Context, id string) (*models.WorkoutRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts/"+url.PathEscape(id), nil, nil)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return nil, &models.NotFoundError{ID: id}
		}
		return nil, err
	}

	var w models.WorkoutRecord
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &w, nil
}

func (c *HTTPClient) RecordWorkout(ctx context.Context, at models.Coords, form session.RawForm) (*models.WorkoutRecord, error) {
	payload := map[string]any{
		"lat":      at.Lat(),
		"lng":      at.Lng(),
		"type":     form.Type,
		"distance": form.Distance,
		"duration": form.Duration,
	}
	if k, err := models.ParseKind(form.Type); err == nil {
		payload[k.ExtraField()] = form.Extra
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/workouts", nil, payload)
	if err != nil {
		var se *statusError
		if !errors.As(err, &se) {
			return nil, err
		}
		switch se.status {
		case http.StatusUnprocessableEntity:
			var resp struct {
				Fields []models.FieldError `json:"fields"`
			}
			if json.Unmarshal(se.body, &resp) == nil && len(resp.Fields) > 0 {
				return nil, &models.ValidationError{Fields: resp.Fields}
			}
		case http.StatusInternalServerError:
			var resp struct {
				Error   string                `json:"error"`
				Durable *bool                 `json:"durable"`
				Workout *models.WorkoutRecord `json:"workout"`
			}
			if json.Unmarshal(se.body, &resp) == nil && resp.Durable != nil && !*resp.Durable && resp.Workout != nil {
				return resp.Workout, &models.PersistError{Err: errors.New(strings.TrimPrefix(resp.Error, "workout recorded but not saved: "))}
			}
		}
		return nil, err
	}

	var w models.WorkoutRecord
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &w, nil
}
