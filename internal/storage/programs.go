package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateProgram inserts a program with its workout and geo activity entries
// in one transaction. Assigns an ID when the caller did not.
func (db *DB) CreateProgram(ctx context.Context, p *models.Program) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO programs (id, user_id, name, description) VALUES ($1,$2,$3,$4)`,
		p.ID, p.UserID, p.Name, p.Description); err != nil {
		return fmt.Errorf("inserting program: %w", err)
	}
	if err := insertProgramEntries(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateProgram replaces a program's metadata and entry lists. Returns false
// when no program with that ID belongs to the user.
func (db *DB) UpdateProgram(ctx context.Context, p *models.Program) (bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE programs SET name = $3, description = $4 WHERE id = $1 AND user_id = $2`,
		p.ID, p.UserID, p.Name, p.Description)
	if err != nil {
		return false, fmt.Errorf("updating program: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM program_workouts WHERE program_id = $1`, p.ID); err != nil {
		return false, fmt.Errorf("clearing program workouts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM program_activities WHERE program_id = $1`, p.ID); err != nil {
		return false, fmt.Errorf("clearing program activities: %w", err)
	}
	if err := insertProgramEntries(ctx, tx, p); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// DeleteProgram removes a program and its entries. Returns false when the
// program does not exist for the user.
func (db *DB) DeleteProgram(ctx context.Context, id uuid.UUID, userID int) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM programs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting program: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetProgram retrieves one program with its entries, catalog names joined in.
// Returns (nil, nil) when not found.
func (db *DB) GetProgram(ctx context.Context, id uuid.UUID, userID int) (*models.Program, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, created_at
		 FROM programs WHERE id = $1 AND user_id = $2`, id, userID)

	var p models.Program
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying program: %w", err)
	}
	if err := db.loadProgramEntries(ctx, map[uuid.UUID]*models.Program{p.ID: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrograms retrieves all of a user's programs with entries, newest first.
func (db *DB) ListPrograms(ctx context.Context, userID int) ([]models.Program, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, description, created_at
		 FROM programs WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var result []models.Program
	for rows.Next() {
		var p models.Program
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.Program, len(result))
	for i := range result {
		byID[result[i].ID] = &result[i]
	}
	if err := db.loadProgramEntries(ctx, byID); err != nil {
		return nil, err
	}
	return result, nil
}

func insertProgramEntries(ctx context.Context, tx pgx.Tx, p *models.Program) error {
	for i, w := range p.Workouts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO program_workouts (program_id, position, workout_id, sets)
			 VALUES ($1,$2,$3,$4)`,
			p.ID, i, w.WorkoutID, w.Sets); err != nil {
			return fmt.Errorf("inserting program workout %d: %w", i, err)
		}
	}
	for i, g := range p.GeoActivities {
		if _, err := tx.Exec(ctx,
			`INSERT INTO program_activities (program_id, position, activity_id, preferences)
			 VALUES ($1,$2,$3,$4)`,
			p.ID, i, g.ActivityID, g.Preferences); err != nil {
			return fmt.Errorf("inserting program activity %d: %w", i, err)
		}
	}
	return nil
}

// loadProgramEntries fills the workout and geo activity entry lists for every
// program in the map, joining catalog name/type/description snapshots.
func (db *DB) loadProgramEntries(ctx context.Context, byID map[uuid.UUID]*models.Program) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	wRows, err := db.Pool.Query(ctx,
		`SELECT pw.program_id, pw.workout_id, pw.sets,
		        COALESCE(w.name, ''), COALESCE(w.type, ''), COALESCE(w.description, '')
		 FROM program_workouts pw
		 LEFT JOIN workouts w ON w.id = pw.workout_id
		 WHERE pw.program_id = ANY($1)
		 ORDER BY pw.program_id, pw.position ASC`, ids)
	if err != nil {
		return fmt.Errorf("querying program workouts: %w", err)
	}
	defer wRows.Close()

	for wRows.Next() {
		var programID uuid.UUID
		var pw models.ProgramWorkout
		if err := wRows.Scan(&programID, &pw.WorkoutID, &pw.Sets,
			&pw.Name, &pw.ExerciseType, &pw.Description); err != nil {
			return fmt.Errorf("scanning program workout: %w", err)
		}
		if p, ok := byID[programID]; ok {
			p.Workouts = append(p.Workouts, pw)
		}
	}
	if err := wRows.Err(); err != nil {
		return err
	}

	gRows, err := db.Pool.Query(ctx,
		`SELECT pa.program_id, pa.activity_id, pa.preferences,
		        COALESCE(g.name, ''), COALESCE(g.type, ''), COALESCE(g.description, '')
		 FROM program_activities pa
		 LEFT JOIN geo_activities g ON g.id = pa.activity_id
		 WHERE pa.program_id = ANY($1)
		 ORDER BY pa.program_id, pa.position ASC`, ids)
	if err != nil {
		return fmt.Errorf("querying program activities: %w", err)
	}
	defer gRows.Close()

	for gRows.Next() {
		var programID uuid.UUID
		var pa models.ProgramActivity
		if err := gRows.Scan(&programID, &pa.ActivityID, &pa.Preferences,
			&pa.Name, &pa.ExerciseType, &pa.Description); err != nil {
			return fmt.Errorf("scanning program activity: %w", err)
		}
		if p, ok := byID[programID]; ok {
			p.GeoActivities = append(p.GeoActivities, pa)
		}
	}
	return gRows.Err()
}
