package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("workoutlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Workout log for running and cycling. List and locate recorded workouts, record new ones at a coordinate, and read per-activity totals. Distances are km, durations minutes, elevation metres."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListWorkouts, Handler: h.listWorkouts},
		server.ServerTool{Tool: toolLocateWorkout, Handler: h.locateWorkout},
		server.ServerTool{Tool: toolRecordWorkout, Handler: h.recordWorkout},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resWorkouts, Handler: h.workouts},
		server.ServerResource{Resource: resTotals, Handler: h.totals},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resWorkouts = mcp.NewResource(
	"workoutlog://workouts",
	"Workouts",
	mcp.WithResourceDescription("Every recorded workout in entry order"),
	mcp.WithMIMEType("application/json"),
)

var resTotals = mcp.NewResource(
	"workoutlog://totals",
	"Totals",
	mcp.WithResourceDescription("Workout count, distance and duration per activity type"),
	mcp.WithMIMEType("application/json"),
)
