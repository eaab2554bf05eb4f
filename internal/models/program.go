package models

import (
	"time"

	"github.com/google/uuid"
)

// SetPlan is one planned set of a program workout. Exactly one of Reps or
// TimeSeconds is expected to drive the set: time-driven if TimeSeconds > 0,
// rep-driven if Reps > 0, otherwise the set is degenerate and skipped.
type SetPlan struct {
	Reps        int     `json:"reps"`
	TimeSeconds int     `json:"time_seconds"`
	WeightKg    float64 `json:"weight_kg"`
}

// ProgramWorkout is a program entry referencing a catalog workout plus its
// ordered sets. Name/ExerciseType/Description are snapshots joined from the
// catalog at load time.
type ProgramWorkout struct {
	WorkoutID    uuid.UUID `json:"workout_id"`
	Name         string    `json:"name,omitempty"`
	ExerciseType string    `json:"exercise_type,omitempty"`
	Description  string    `json:"description,omitempty"`
	Sets         []SetPlan `json:"sets"`
}

// ActivityPreferences are the optional targets of a program geo activity.
// CountdownSeconds > 0 makes the activity time-driven; otherwise it is
// open-ended and the user marks it done manually.
type ActivityPreferences struct {
	DistanceKm       float64 `json:"distance_km,omitempty"`
	AvgPace          float64 `json:"avg_pace,omitempty"`
	CountdownSeconds int     `json:"countdown_seconds,omitempty"`
}

// ProgramActivity is a program entry referencing a catalog geo activity.
type ProgramActivity struct {
	ActivityID   uuid.UUID           `json:"activity_id"`
	Name         string              `json:"name,omitempty"`
	ExerciseType string              `json:"exercise_type,omitempty"`
	Description  string              `json:"description,omitempty"`
	Preferences  ActivityPreferences `json:"preferences"`
}

// Program is a session template: an ordered list of workout entries followed
// by geo activity entries. Read-only input to the guided session player.
type Program struct {
	ID            uuid.UUID         `json:"id"`
	UserID        int               `json:"user_id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Workouts      []ProgramWorkout  `json:"workouts"`
	GeoActivities []ProgramActivity `json:"geo_activities"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TotalSets counts planned sets across all workout entries, treating each geo
// activity as one step. This bounds how many advance transitions a guided
// session can take before completion.
func (p *Program) TotalSets() int {
	n := 0
	for _, w := range p.Workouts {
		if len(w.Sets) == 0 {
			n++ // empty entry still consumes one skip step
			continue
		}
		n += len(w.Sets)
	}
	n += len(p.GeoActivities)
	return n
}

// TargetDistanceKm sums the planned distance across all geo activities.
func (p *Program) TargetDistanceKm() float64 {
	var km float64
	for _, g := range p.GeoActivities {
		km += g.Preferences.DistanceKm
	}
	return km
}
