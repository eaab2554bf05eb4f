package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingTypeSummary holds per-exercise-type volume within a period.
type TrainingTypeSummary struct {
	Type    string `json:"type"`
	Entries int    `json:"entries"`
	Sets    int    `json:"sets"`
}

// TrainingStatsPeriod holds aggregated session stats for one time period.
type TrainingStatsPeriod struct {
	Period        string                `json:"period"`
	Sessions      int                   `json:"sessions"`
	Sets          int                   `json:"sets"`
	TotalMinutes  int                   `json:"total_minutes"`
	TotalCalories float64               `json:"total_calories"`
	DistanceKm    float64               `json:"distance_km"`
	ByType        []TrainingTypeSummary `json:"by_type,omitempty"`
}

// GetTrainingStats returns per-period session counts, set and distance
// volume, and an exercise-type breakdown over recorded program sessions.
func (db *DB) GetTrainingStats(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingStatsPeriod, error) {
	trunc := truncInterval(bucket)

	aggRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, performed_at)::date AS period,
		        COUNT(*)::int,
		        COALESCE(SUM((SELECT COALESCE(SUM(jsonb_array_length(w->'sets')), 0)
		                      FROM jsonb_array_elements(workouts) w)), 0)::int,
		        COALESCE(SUM(total_duration_minutes), 0)::int,
		        COALESCE(SUM(total_calories_burned), 0),
		        COALESCE(SUM((SELECT COALESCE(SUM((g->>'distance_km')::float), 0)
		                      FROM jsonb_array_elements(geo_activities) g)), 0)
		 FROM program_sessions
		 WHERE performed_at >= $2 AND performed_at < $3 AND user_id = $4
		 GROUP BY period
		 ORDER BY period DESC`,
		trunc, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training stats: %w", err)
	}
	defer aggRows.Close()

	periodMap := make(map[string]*TrainingStatsPeriod)
	var periodOrder []string

	for aggRows.Next() {
		var periodTime time.Time
		var p TrainingStatsPeriod
		if err := aggRows.Scan(&periodTime, &p.Sessions, &p.Sets, &p.TotalMinutes,
			&p.TotalCalories, &p.DistanceKm); err != nil {
			return nil, fmt.Errorf("scanning training stats: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		periodMap[p.Period] = &p
		periodOrder = append(periodOrder, p.Period)
	}
	if err := aggRows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, performed_at)::date AS period,
		        COALESCE(NULLIF(w->>'exercise_type', ''), 'other') AS type,
		        COUNT(*)::int,
		        COALESCE(SUM(jsonb_array_length(w->'sets')), 0)::int AS sets
		 FROM program_sessions, jsonb_array_elements(workouts) w
		 WHERE performed_at >= $2 AND performed_at < $3 AND user_id = $4
		 GROUP BY period, type
		 ORDER BY period DESC, sets DESC`,
		trunc, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying type breakdown: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var periodTime time.Time
		var ts TrainingTypeSummary
		if err := typeRows.Scan(&periodTime, &ts.Type, &ts.Entries, &ts.Sets); err != nil {
			return nil, fmt.Errorf("scanning type breakdown: %w", err)
		}
		key := periodTime.Format("2006-01-02")
		if p, ok := periodMap[key]; ok {
			p.ByType = append(p.ByType, ts)
		}
	}
	if err := typeRows.Err(); err != nil {
		return nil, err
	}

	result := make([]TrainingStatsPeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 day":
		return "day"
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "month"
	}
}
