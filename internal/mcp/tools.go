package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/claude/workoutlog/internal/models"
	"github.com/claude/workoutlog/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List recorded workouts in the order they were entered. Running workouts carry cadence (spm) and pace (min/km); cycling workouts carry elevationGain (m) and speed (km/h)."),
	mcp.WithString("type", mcp.Description("Only return this activity type."), mcp.Enum("running", "cycling")),
)

var toolLocateWorkout = mcp.NewTool("locate_workout",
	mcp.WithDescription("Fetch one workout by id, including where it happened."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id as returned by list_workouts")),
)

var toolRecordWorkout = mcp.NewTool("record_workout",
	mcp.WithDescription("Record a workout at a coordinate. Distance and duration must be positive; running needs a positive cadence, cycling a non-negative elevation gain."),
	mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees")),
	mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in degrees")),
	mcp.WithString("type", mcp.Required(), mcp.Description("Activity type"), mcp.Enum("running", "cycling")),
	mcp.WithNumber("distance", mcp.Required(), mcp.Description("Distance in km")),
	mcp.WithNumber("duration", mcp.Required(), mcp.Description("Duration in minutes")),
	mcp.WithNumber("cadence", mcp.Description("Steps per minute (running)")),
	mcp.WithNumber("elevation_gain", mcp.Description("Elevation gain in metres (cycling)")),
)

// rawArg returns an argument as the text a form field would hold. Missing
// arguments are blank.
func rawArg(req mcp.CallToolRequest, name string) string {
	switch v := req.GetArguments()[name].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

// toolError turns a data source error into a tool result the model can act on.
func toolError(op string, err error) *mcp.CallToolResult {
	var (
		ve *models.ValidationError
		nf *models.NotFoundError
		pe *models.PersistError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &pe):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(op + " failed: " + err.Error())
	}
}

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("type", "")
	if kind != "" {
		k, err := models.ParseKind(kind)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		kind = string(k)
	}

	workouts, err := h.ds.ListWorkouts(ctx, kind)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return toolError("query", err), nil
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) locateWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	w, err := h.ds.LocateWorkout(ctx, id)
	if err != nil {
		return toolError("lookup", err), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) recordWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at := models.Coords{lat, lng}
	if !at.Valid() {
		return mcp.NewToolResultError("coordinates out of range"), nil
	}

	kindStr, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := models.ParseKind(kindStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	extraArg := "cadence"
	if kind == models.KindCycling {
		extraArg = "elevation_gain"
	}
	form := session.RawForm{
		Type:     string(kind),
		Distance: rawArg(req, "distance"),
		Duration: rawArg(req, "duration"),
		Extra:    rawArg(req, extraArg),
	}

	w, err := h.ds.RecordWorkout(ctx, at, form)
	var pe *models.PersistError
	if errors.As(err, &pe) && w != nil {
		h.log.Error("mcp record_workout not durable", "id", w.ID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("workout %s is in the session but was not saved: %v", w.ID, pe.Err)), nil
	}
	if err != nil {
		h.log.Info("mcp record_workout rejected", "error", err)
		return toolError("record", err), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
