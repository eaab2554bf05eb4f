package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertProgramSession stores a completed-session summary. Duplicate IDs are
// ignored so a journal replay cannot double-record a session. Returns true if
// a row was inserted.
func (db *DB) InsertProgramSession(ctx context.Context, s *models.ProgramSession) (bool, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO program_sessions
		 (id, user_id, program_id, program_name, workouts, geo_activities,
		  total_duration_minutes, total_calories_burned, performed_at, end_time)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT DO NOTHING`,
		s.ID, s.UserID, s.ProgramID, s.ProgramName, s.Workouts, s.GeoActivities,
		s.TotalDurationMinutes, s.TotalCaloriesBurned, s.PerformedAt, s.EndTime)
	if err != nil {
		return false, fmt.Errorf("inserting program session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetProgramSession retrieves one session by ID. Returns (nil, nil) when not
// found.
func (db *DB) GetProgramSession(ctx context.Context, id uuid.UUID, userID int) (*models.ProgramSession, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, program_id, program_name, workouts, geo_activities,
		        total_duration_minutes, total_calories_burned, performed_at, end_time
		 FROM program_sessions
		 WHERE id = $1 AND user_id = $2`, id, userID)

	var s models.ProgramSession
	err := row.Scan(&s.ID, &s.UserID, &s.ProgramID, &s.ProgramName, &s.Workouts, &s.GeoActivities,
		&s.TotalDurationMinutes, &s.TotalCaloriesBurned, &s.PerformedAt, &s.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying program session: %w", err)
	}
	return &s, nil
}

// QueryProgramSessions retrieves sessions in a time range, newest first.
// programID narrows to one program when non-nil.
func (db *DB) QueryProgramSessions(ctx context.Context, start, end time.Time, programID *uuid.UUID, userID int) ([]models.ProgramSession, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, program_id, program_name, workouts, geo_activities,
		        total_duration_minutes, total_calories_burned, performed_at, end_time
		 FROM program_sessions
		 WHERE performed_at >= $1 AND performed_at < $2 AND user_id = $3
		   AND ($4::uuid IS NULL OR program_id = $4)
		 ORDER BY performed_at DESC`,
		start, end, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("querying program sessions: %w", err)
	}
	defer rows.Close()

	var result []models.ProgramSession
	for rows.Next() {
		var s models.ProgramSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProgramID, &s.ProgramName, &s.Workouts, &s.GeoActivities,
			&s.TotalDurationMinutes, &s.TotalCaloriesBurned, &s.PerformedAt, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scanning program session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// LatestSessionForProgram retrieves the most recent session recorded against
// a program, for progress computation. Returns (nil, nil) when none exists.
func (db *DB) LatestSessionForProgram(ctx context.Context, programID uuid.UUID, userID int) (*models.ProgramSession, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, program_id, program_name, workouts, geo_activities,
		        total_duration_minutes, total_calories_burned, performed_at, end_time
		 FROM program_sessions
		 WHERE program_id = $1 AND user_id = $2
		 ORDER BY performed_at DESC
		 LIMIT 1`, programID, userID)

	var s models.ProgramSession
	err := row.Scan(&s.ID, &s.UserID, &s.ProgramID, &s.ProgramName, &s.Workouts, &s.GeoActivities,
		&s.TotalDurationMinutes, &s.TotalCaloriesBurned, &s.PerformedAt, &s.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest program session: %w", err)
	}
	return &s, nil
}
