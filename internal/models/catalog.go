package models

import (
	"time"

	"github.com/google/uuid"
)

// Workout is a catalog exercise definition.
type Workout struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"` // "bodyweight" or "equipment"
	Type        string    `json:"type"`     // muscle group, e.g. "chest", "legs", "full_body"
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Equipment   string    `json:"equipment_needed,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GeoActivity is a catalog outdoor activity definition. MET is the metabolic
// equivalent used for calorie estimates.
type GeoActivity struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"` // e.g. "Run", "Bike"
	Description string    `json:"description,omitempty"`
	MET         float64   `json:"met"`
	CreatedAt   time.Time `json:"created_at"`
}
