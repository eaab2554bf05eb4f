package mcp

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetPrograms = mcp.NewTool("get_programs",
	mcp.WithDescription("List all workout programs with their workout entries, planned sets, and geo activities."),
)

var toolGetProgram = mcp.NewTool("get_program",
	mcp.WithDescription("Get a single workout program by ID, including all workout entries with planned sets and geo activities with targets."),
	mcp.WithString("program_id", mcp.Required(), mcp.Description("Program UUID")),
)

var toolGetProgramSessions = mcp.NewTool("get_program_sessions",
	mcp.WithDescription("Query completed training sessions. Each session records the performed workouts with per-set reps/time/weight and any geo activities."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("program_id", mcp.Description("Filter by source program UUID")),
)

var toolGetProgramProgress = mcp.NewTool("get_program_progress",
	mcp.WithDescription("Compare a program's planned volume against its most recent completed session. Returns planned vs performed sets, reps, duration, and distance."),
	mcp.WithString("program_id", mcp.Required(), mcp.Description("Program UUID")),
)

var toolGetTrainingStats = mcp.NewTool("get_training_stats",
	mcp.WithDescription("Aggregated training statistics per period: session counts, set totals, minutes, calories, distance, and a per-exercise-type breakdown."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 6 months ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 month'."), mcp.Enum("1 day", "1 week", "1 month")),
)

var toolGetCatalog = mcp.NewTool("get_catalog",
	mcp.WithDescription("List catalog exercise definitions: strength workouts and geo activities."),
	mcp.WithString("category", mcp.Description("Filter workouts by category (e.g. 'bodyweight', 'equipment')")),
	mcp.WithString("type", mcp.Description("Filter workouts by muscle group (e.g. 'chest', 'legs')")),
)

// --- Tool handlers ---

func (h *handlers) getPrograms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)

	programs, err := h.ds.ListPrograms(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_programs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(programs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("program_id")
	if err != nil {
		return mcp.NewToolResultError("program_id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid program_id: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	program, err := h.ds.GetProgram(ctx, id, uid)
	if err != nil {
		h.log.Error("mcp get_program", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if program == nil {
		return mcp.NewToolResultError("program not found"), nil
	}

	result, err := mcp.NewToolResultJSON(program)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgramSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	var programID *uuid.UUID
	if idStr := req.GetString("program_id", ""); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return mcp.NewToolResultError("invalid program_id: " + err.Error()), nil
		}
		programID = &id
	}

	uid := UserIDFromContext(ctx)
	sessions, err := h.ds.QueryProgramSessions(ctx, start, end, programID, uid)
	if err != nil {
		h.log.Error("mcp get_program_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgramProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("program_id")
	if err != nil {
		return mcp.NewToolResultError("program_id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid program_id: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	program, err := h.ds.GetProgram(ctx, id, uid)
	if err != nil {
		h.log.Error("mcp get_program_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if program == nil {
		return mcp.NewToolResultError("program not found"), nil
	}

	session, err := h.ds.LatestSessionForProgram(ctx, id, uid)
	if err != nil {
		h.log.Error("mcp get_program_progress session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if session == nil {
		session = &models.ProgramSession{}
	}

	result, err := mcp.NewToolResultJSON(models.ComputeProgress(program, session))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endStr := req.GetString("end", "")
	startStr := req.GetString("start", "")

	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return mcp.NewToolResultError("invalid end date: " + err.Error()), nil
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return mcp.NewToolResultError("invalid start date: " + err.Error()), nil
		}
	} else {
		start = end.AddDate(0, -6, 0)
	}

	bucket := req.GetString("bucket", "1 month")
	uid := UserIDFromContext(ctx)

	stats, err := h.ds.GetTrainingStats(ctx, start, end, bucket, uid)
	if err != nil {
		h.log.Error("mcp get_training_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	workoutType := req.GetString("type", "")

	workouts, err := h.ds.ListWorkouts(ctx, category, workoutType)
	if err != nil {
		h.log.Error("mcp get_catalog workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	activities, err := h.ds.ListGeoActivities(ctx)
	if err != nil {
		h.log.Error("mcp get_catalog activities", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"workouts":       workouts,
		"geo_activities": activities,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
