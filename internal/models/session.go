package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSet is one set as recorded in a completed session. Values are the
// planned parameters from the program; actual-performance capture is a
// separate concern the recorder does not attempt.
type SessionSet struct {
	Reps        int     `json:"reps"`
	TimeSeconds int     `json:"time_seconds"`
	WeightKg    float64 `json:"weight_kg"`
}

// SessionWorkout is a workout performed during a program session, with a
// snapshot of the catalog name and type at recording time.
type SessionWorkout struct {
	WorkoutID    uuid.UUID    `json:"workout_id"`
	Name         string       `json:"name,omitempty"`
	ExerciseType string       `json:"exercise_type,omitempty"`
	Sets         []SessionSet `json:"sets"`
}

// SessionActivity is a geo activity performed during a program session.
type SessionActivity struct {
	ActivityID    uuid.UUID `json:"activity_id"`
	Name          string    `json:"name,omitempty"`
	ExerciseType  string    `json:"exercise_type,omitempty"`
	DistanceKm    float64   `json:"distance_km"`
	AvgPace       float64   `json:"avg_pace,omitempty"`
	MovingTimeSec int       `json:"moving_time_sec"`
}

// ProgramSession is the completion record of one guided session run.
type ProgramSession struct {
	ID                   uuid.UUID         `json:"id"`
	UserID               int               `json:"user_id"`
	ProgramID            *uuid.UUID        `json:"program_id,omitempty"`
	ProgramName          string            `json:"program_name"`
	Workouts             []SessionWorkout  `json:"workouts"`
	GeoActivities        []SessionActivity `json:"geo_activities"`
	TotalDurationMinutes int               `json:"total_duration_minutes"`
	TotalCaloriesBurned  float64           `json:"total_calories_burned"`
	PerformedAt          time.Time         `json:"performed_at"`
	EndTime              *time.Time        `json:"end_time,omitempty"`
}

// CompletedSets counts sets recorded across all session workouts.
func (s *ProgramSession) CompletedSets() int {
	n := 0
	for _, w := range s.Workouts {
		n += len(w.Sets)
	}
	return n
}

// CompletedDistanceKm sums recorded distance across all session activities.
func (s *ProgramSession) CompletedDistanceKm() float64 {
	var km float64
	for _, g := range s.GeoActivities {
		km += g.DistanceKm
	}
	return km
}
