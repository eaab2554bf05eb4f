// Package importer loads YAML seed files into the database: catalog workout
// and geo activity definitions plus program templates referencing them by
// name. Re-running an import is idempotent.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed     int
	WorkoutsInserted   int
	WorkoutsUpdated    int
	ActivitiesInserted int
	ActivitiesUpdated  int
	ProgramsCreated    int
	ProgramsSkipped    int
}

// Importer reads seed files and inserts catalog entries and programs.
type Importer struct {
	db     *storage.DB
	log    *slog.Logger
	dryRun bool
	userID int
	stats  Stats
}

// New creates a new Importer. Programs are created for the given user.
func New(db *storage.DB, log *slog.Logger, userID int, dryRun bool) *Importer {
	return &Importer{db: db, log: log, userID: userID, dryRun: dryRun}
}

type seedSet struct {
	Reps        int     `yaml:"reps"`
	TimeSeconds int     `yaml:"time_seconds"`
	WeightKg    float64 `yaml:"weight_kg"`
}

type seedPrefs struct {
	DistanceKm       float64 `yaml:"distance_km"`
	AvgPace          float64 `yaml:"avg_pace"`
	CountdownSeconds int     `yaml:"countdown_seconds"`
}

type seedWorkout struct {
	Category    string `yaml:"category"`
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Equipment   string `yaml:"equipment"`
}

type seedActivity struct {
	Name        string  `yaml:"name"`
	Type        string  `yaml:"type"`
	Description string  `yaml:"description"`
	MET         float64 `yaml:"met"`
}

type seedProgramWorkout struct {
	Workout string    `yaml:"workout"`
	Sets    []seedSet `yaml:"sets"`
}

type seedProgramActivity struct {
	Activity    string    `yaml:"activity"`
	Preferences seedPrefs `yaml:"preferences"`
}

type seedProgram struct {
	Name          string                `yaml:"name"`
	Description   string                `yaml:"description"`
	Workouts      []seedProgramWorkout  `yaml:"workouts"`
	GeoActivities []seedProgramActivity `yaml:"geo_activities"`
}

type seedFile struct {
	Workouts      []seedWorkout  `yaml:"workouts"`
	GeoActivities []seedActivity `yaml:"geo_activities"`
	Programs      []seedProgram  `yaml:"programs"`
}

// Import processes one seed file or every .yaml/.yml file in a directory.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	files, err := seedFiles(path)
	if err != nil {
		return &imp.stats, err
	}

	for _, file := range files {
		seed, err := parseSeedFile(file)
		if err != nil {
			return &imp.stats, fmt.Errorf("parsing %s: %w", file, err)
		}
		if err := imp.importSeed(ctx, seed); err != nil {
			return &imp.stats, fmt.Errorf("importing %s: %w", file, err)
		}
		imp.stats.FilesProcessed++
		imp.log.Info("seed file processed", "file", file)
	}
	return &imp.stats, nil
}

func seedFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no seed files in %s", path)
	}
	return files, nil
}

func parseSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	for i, w := range seed.Workouts {
		if strings.TrimSpace(w.Name) == "" {
			return nil, fmt.Errorf("workout %d has no name", i)
		}
	}
	for i, a := range seed.GeoActivities {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("geo activity %d has no name", i)
		}
	}
	for i, p := range seed.Programs {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("program %d has no name", i)
		}
	}
	return &seed, nil
}

func (imp *Importer) importSeed(ctx context.Context, seed *seedFile) error {
	if imp.dryRun {
		imp.stats.WorkoutsInserted += len(seed.Workouts)
		imp.stats.ActivitiesInserted += len(seed.GeoActivities)
		imp.stats.ProgramsCreated += len(seed.Programs)
		return nil
	}

	for _, w := range seed.Workouts {
		inserted, err := imp.db.UpsertWorkout(ctx, models.Workout{
			Category:    w.Category,
			Type:        w.Type,
			Name:        w.Name,
			Description: w.Description,
			Equipment:   w.Equipment,
		})
		if err != nil {
			return err
		}
		if inserted {
			imp.stats.WorkoutsInserted++
		} else {
			imp.stats.WorkoutsUpdated++
		}
	}
	for _, a := range seed.GeoActivities {
		inserted, err := imp.db.UpsertGeoActivity(ctx, models.GeoActivity{
			Name:        a.Name,
			Type:        a.Type,
			Description: a.Description,
			MET:         a.MET,
		})
		if err != nil {
			return err
		}
		if inserted {
			imp.stats.ActivitiesInserted++
		} else {
			imp.stats.ActivitiesUpdated++
		}
	}

	if len(seed.Programs) == 0 {
		return nil
	}

	workoutIDs, activityIDs, err := imp.catalogIndex(ctx)
	if err != nil {
		return err
	}
	existing, err := imp.db.ListPrograms(ctx, imp.userID)
	if err != nil {
		return fmt.Errorf("listing programs: %w", err)
	}
	existingNames := make(map[string]bool, len(existing))
	for _, p := range existing {
		existingNames[p.Name] = true
	}

	for _, sp := range seed.Programs {
		if existingNames[sp.Name] {
			imp.stats.ProgramsSkipped++
			imp.log.Info("program already exists, skipping", "program", sp.Name)
			continue
		}
		program, err := buildProgram(sp, workoutIDs, activityIDs, imp.userID)
		if err != nil {
			return err
		}
		if err := imp.db.CreateProgram(ctx, program); err != nil {
			return err
		}
		imp.stats.ProgramsCreated++
		existingNames[sp.Name] = true
	}
	return nil
}

func (imp *Importer) catalogIndex(ctx context.Context) (map[string]uuid.UUID, map[string]uuid.UUID, error) {
	workouts, err := imp.db.ListWorkouts(ctx, "", "")
	if err != nil {
		return nil, nil, fmt.Errorf("listing workouts: %w", err)
	}
	activities, err := imp.db.ListGeoActivities(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing geo activities: %w", err)
	}

	workoutIDs := make(map[string]uuid.UUID, len(workouts))
	for _, w := range workouts {
		workoutIDs[w.Name] = w.ID
	}
	activityIDs := make(map[string]uuid.UUID, len(activities))
	for _, a := range activities {
		activityIDs[a.Name] = a.ID
	}
	return workoutIDs, activityIDs, nil
}

// buildProgram resolves seed entry names against the catalog index.
func buildProgram(sp seedProgram, workoutIDs, activityIDs map[string]uuid.UUID, userID int) (*models.Program, error) {
	program := &models.Program{
		UserID:      userID,
		Name:        sp.Name,
		Description: sp.Description,
	}
	for _, w := range sp.Workouts {
		id, ok := workoutIDs[w.Workout]
		if !ok {
			return nil, fmt.Errorf("program %q references unknown workout %q", sp.Name, w.Workout)
		}
		entry := models.ProgramWorkout{WorkoutID: id}
		for _, s := range w.Sets {
			entry.Sets = append(entry.Sets, models.SetPlan{
				Reps:        s.Reps,
				TimeSeconds: s.TimeSeconds,
				WeightKg:    s.WeightKg,
			})
		}
		program.Workouts = append(program.Workouts, entry)
	}
	for _, a := range sp.GeoActivities {
		id, ok := activityIDs[a.Activity]
		if !ok {
			return nil, fmt.Errorf("program %q references unknown activity %q", sp.Name, a.Activity)
		}
		program.GeoActivities = append(program.GeoActivities, models.ProgramActivity{
			ActivityID: id,
			Preferences: models.ActivityPreferences{
				DistanceKm:       a.Preferences.DistanceKm,
				AvgPace:          a.Preferences.AvgPace,
				CountdownSeconds: a.Preferences.CountdownSeconds,
			},
		})
	}
	return program, nil
}
