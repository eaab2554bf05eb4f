package models

import "math"

// Session completion statuses derived from progress percentages.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusPartial    = "partial"
	StatusCompleted  = "completed"
)

// GeoProgress compares completed distance against the program target.
type GeoProgress struct {
	TargetDistanceKm    float64 `json:"target_distance_km"`
	CompletedDistanceKm float64 `json:"completed_distance_km"`
	Percentage          float64 `json:"percentage"`
}

// WorkoutProgress compares completed sets against the program target.
type WorkoutProgress struct {
	TargetSets    int     `json:"target_sets"`
	CompletedSets int     `json:"completed_sets"`
	Percentage    float64 `json:"percentage"`
}

// SessionProgress is the adherence summary of one session against its program.
type SessionProgress struct {
	Geo               GeoProgress     `json:"geo_progress"`
	Workout           WorkoutProgress `json:"workout_progress"`
	OverallPercentage float64         `json:"overall_percentage"`
	Status            string          `json:"status"`
}

// ComputeProgress measures a session against its program template. Targets
// with no planned work are excluded from the overall percentage. A session
// that ended below 100% is partial; one still open is in_progress.
func ComputeProgress(program *Program, session *ProgramSession) *SessionProgress {
	p := &SessionProgress{}

	p.Workout.TargetSets = 0
	for _, w := range program.Workouts {
		p.Workout.TargetSets += len(w.Sets)
	}
	p.Workout.CompletedSets = session.CompletedSets()
	p.Geo.TargetDistanceKm = program.TargetDistanceKm()
	p.Geo.CompletedDistanceKm = session.CompletedDistanceKm()

	var parts []float64
	if p.Workout.TargetSets > 0 {
		p.Workout.Percentage = clampPct(float64(p.Workout.CompletedSets) / float64(p.Workout.TargetSets) * 100)
		parts = append(parts, p.Workout.Percentage)
	}
	if p.Geo.TargetDistanceKm > 0 {
		p.Geo.Percentage = clampPct(p.Geo.CompletedDistanceKm / p.Geo.TargetDistanceKm * 100)
		parts = append(parts, p.Geo.Percentage)
	}

	for _, v := range parts {
		p.OverallPercentage += v
	}
	if len(parts) > 0 {
		p.OverallPercentage = round1(p.OverallPercentage / float64(len(parts)))
	}

	switch {
	case p.OverallPercentage >= 100:
		p.Status = StatusCompleted
	case p.OverallPercentage == 0:
		p.Status = StatusNotStarted
	case session.EndTime != nil:
		p.Status = StatusPartial
	default:
		p.Status = StatusInProgress
	}
	return p
}

func clampPct(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return round1(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
