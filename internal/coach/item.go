package coach

import (
	"fmt"
	"strings"

	"github.com/claude/repcoach/internal/models"
)

// Kind tags an exercise item as a strength workout or an outdoor geo activity.
type Kind string

const (
	KindWorkout Kind = "workout"
	KindGeo     Kind = "geo"
)

// ExerciseItem is the normalized runtime union the sequencer iterates over:
// either a workout entry with its sets or a geo activity with its
// preferences. The list is immutable for the duration of one session.
type ExerciseItem struct {
	Kind         Kind
	RefID        string // catalog id, part of announcement keys
	Name         string
	Description  string
	ExerciseType string
	Sets         []models.SetPlan           // workout kind only
	Prefs        models.ActivityPreferences // geo kind only
}

// ItemsFromProgram flattens a program into the ordered exercise item list:
// all workout entries first, then all geo activities.
func ItemsFromProgram(p *models.Program) []ExerciseItem {
	items := make([]ExerciseItem, 0, len(p.Workouts)+len(p.GeoActivities))
	for _, w := range p.Workouts {
		name := w.Name
		if name == "" {
			name = "Workout"
		}
		items = append(items, ExerciseItem{
			Kind:         KindWorkout,
			RefID:        w.WorkoutID.String(),
			Name:         name,
			Description:  w.Description,
			ExerciseType: w.ExerciseType,
			Sets:         w.Sets,
		})
	}
	for _, g := range p.GeoActivities {
		name := g.Name
		if name == "" {
			name = "Activity"
		}
		items = append(items, ExerciseItem{
			Kind:         KindGeo,
			RefID:        g.ActivityID.String(),
			Name:         name,
			Description:  g.Description,
			ExerciseType: g.ExerciseType,
			Prefs:        g.Preferences,
		})
	}
	return items
}

// announceText builds the spoken description for a workout set or a geo
// activity: name, set number, then whichever parameters are present.
func announceText(item ExerciseItem, set int) string {
	if item.Kind == KindWorkout {
		details := []string{item.Name, fmt.Sprintf("Set %d", set+1)}
		if set < len(item.Sets) {
			s := item.Sets[set]
			if s.Reps > 0 {
				details = append(details, fmt.Sprintf("%d repetitions", s.Reps))
			}
			if s.TimeSeconds > 0 {
				details = append(details, fmt.Sprintf("%d seconds", s.TimeSeconds))
			}
			if s.WeightKg > 0 {
				details = append(details, fmt.Sprintf("%g kilograms", s.WeightKg))
			}
		}
		return strings.Join(details, ", ")
	}

	details := []string{item.Name}
	if item.Prefs.DistanceKm > 0 {
		details = append(details, fmt.Sprintf("%g kilometers", item.Prefs.DistanceKm))
	}
	if item.Prefs.AvgPace > 0 {
		details = append(details, fmt.Sprintf("target pace %g", item.Prefs.AvgPace))
	}
	if item.Prefs.CountdownSeconds > 0 {
		details = append(details, fmt.Sprintf("%d seconds", item.Prefs.CountdownSeconds))
	}
	return strings.Join(details, ", ")
}
