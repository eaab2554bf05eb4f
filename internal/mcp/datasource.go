package mcp

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools.
type DataSource interface {
	ListPrograms(ctx context.Context, userID int) ([]models.Program, error)
	GetProgram(ctx context.Context, id uuid.UUID, userID int) (*models.Program, error)
	QueryProgramSessions(ctx context.Context, start, end time.Time, programID *uuid.UUID, userID int) ([]models.ProgramSession, error)
	LatestSessionForProgram(ctx context.Context, programID uuid.UUID, userID int) (*models.ProgramSession, error)
	GetTrainingStats(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingStatsPeriod, error)
	ListWorkouts(ctx context.Context, category, workoutType string) ([]models.Workout, error)
	ListGeoActivities(ctx context.Context) ([]models.GeoActivity, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
