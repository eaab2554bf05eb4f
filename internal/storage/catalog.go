package storage

import (
	"context"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// UpsertWorkout inserts or refreshes a catalog workout definition, keyed by
// name. Returns true if a new row was inserted.
func (db *DB) UpsertWorkout(ctx context.Context, w models.Workout) (bool, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	var inserted bool
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workouts (id, category, type, name, description, equipment)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (name) DO UPDATE
			SET category = $2, type = $3, description = $5, equipment = $6
		 RETURNING (xmax = 0)`,
		w.ID, w.Category, w.Type, w.Name, w.Description, w.Equipment).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting workout: %w", err)
	}
	return inserted, nil
}

// ListWorkouts retrieves the workout catalog, optionally filtered by category
// and muscle-group type (empty strings match everything).
func (db *DB) ListWorkouts(ctx context.Context, category, workoutType string) ([]models.Workout, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, category, type, name, description, equipment, created_at
		 FROM workouts
		 WHERE ($1 = '' OR category = $1) AND ($2 = '' OR type = $2)
		 ORDER BY name ASC`,
		category, workoutType)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.Category, &w.Type, &w.Name, &w.Description, &w.Equipment, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// UpsertGeoActivity inserts or refreshes a catalog geo activity, keyed by
// name. Returns true if a new row was inserted.
func (db *DB) UpsertGeoActivity(ctx context.Context, g models.GeoActivity) (bool, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	var inserted bool
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO geo_activities (id, name, type, description, met)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (name) DO UPDATE
			SET type = $3, description = $4, met = $5
		 RETURNING (xmax = 0)`,
		g.ID, g.Name, g.Type, g.Description, g.MET).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting geo activity: %w", err)
	}
	return inserted, nil
}

// ListGeoActivities retrieves the geo activity catalog.
func (db *DB) ListGeoActivities(ctx context.Context) ([]models.GeoActivity, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, type, description, met, created_at
		 FROM geo_activities
		 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying geo activities: %w", err)
	}
	defer rows.Close()

	var result []models.GeoActivity
	for rows.Next() {
		var g models.GeoActivity
		if err := rows.Scan(&g.ID, &g.Name, &g.Type, &g.Description, &g.MET, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning geo activity: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}
