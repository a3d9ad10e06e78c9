// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by GrowTrialLab.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTent identifies a grow tent record.
	EntityTent EntityType = "tent"
	// EntitySlot identifies a shelf slot record.
	EntitySlot EntityType = "slot"
	// EntityTray identifies a tray record.
	EntityTray EntityType = "tray"
	// EntityPlant identifies an individual plant record.
	EntityPlant EntityType = "plant"
	// EntityRecipe identifies a feeding recipe record.
	EntityRecipe EntityType = "recipe"
	// EntityExperiment identifies an experiment record.
	EntityExperiment EntityType = "experiment"
	// EntityBaseline identifies a baseline health record.
	EntityBaseline EntityType = "baseline"
	// EntitySchedule identifies a recurring action schedule record.
	EntitySchedule EntityType = "schedule"
	// EntityRotation identifies a rotation log record.
	EntityRotation EntityType = "rotation"
)

// Grade is the categorical health classification derived from baseline metrics.
type Grade string

// Canonical baseline grades ordered best to worst.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// GradeSource records whether the active grade came from the algorithm or a human.
type GradeSource string

// Grade provenance values.
const (
	// GradeSourceAuto means the stored grade tracks the computed recommendation.
	GradeSourceAuto GradeSource = "auto"
	// GradeSourceManual means a human override is pinned until explicitly reverted.
	GradeSourceManual GradeSource = "manual"
)

// ScheduleAction enumerates the recurring actions researchers can schedule.
type ScheduleAction string

// Canonical schedule action kinds.
const (
	ScheduleActionFeed     ScheduleAction = "feed"
	ScheduleActionRotate   ScheduleAction = "rotate"
	ScheduleActionInspect  ScheduleAction = "inspect"
	ScheduleActionBaseline ScheduleAction = "baseline"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tent represents one physical grow tent.
type Tent struct {
	Base
	Name string `json:"name"`
	Zone string `json:"zone"`
}

// Slot is a fixed position on a tent shelf. ShelfIndex and SlotIndex are
// operator-entered and may be missing, duplicated, or non-positive; display
// normalization happens in the layout package, never here.
type Slot struct {
	Base
	TentID     string `json:"tent_id"`
	Label      string `json:"label"`
	ShelfIndex int    `json:"shelf_index"`
	SlotIndex  int    `json:"slot_index"`
}

// Tray holds plants and occupies at most one slot.
type Tray struct {
	Base
	Label    string  `json:"label"`
	Capacity int     `json:"capacity"`
	SlotID   *string `json:"slot_id"`
}

// Plant represents an individual plant tracked by the system.
type Plant struct {
	Base
	Code         string  `json:"code"`
	Species      string  `json:"species"`
	ExperimentID string  `json:"experiment_id"`
	RecipeID     *string `json:"recipe_id"`
	TrayID       *string `json:"tray_id"`
	Notes        *string `json:"notes,omitempty"`
}

// Recipe describes a feeding regimen assignable to plants.
type Recipe struct {
	Base
	Name        string  `json:"name"`
	Phase       string  `json:"phase"`
	Description *string `json:"description,omitempty"`
}

// Experiment groups plants under one trial, including the baseline phase lock.
type Experiment struct {
	Base
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	BaselineLocked  bool       `json:"baseline_locked"`
	LockedAt        *time.Time `json:"locked_at"`
	RequireBaseline bool       `json:"require_baseline"`
}

// BaselineMetrics holds the five ordinal health metrics, each an integer 1-5.
type BaselineMetrics struct {
	Vigor          int `json:"vigor"`
	FeatureCount   int `json:"feature_count"`
	FeatureQuality int `json:"feature_quality"`
	ColorTurgor    int `json:"color_turgor"`
	DamagePests    int `json:"damage_pests"`
}

// BaselineRecord captures per-plant baseline health state.
type BaselineRecord struct {
	Base
	PlantID     string          `json:"plant_id"`
	Metrics     BaselineMetrics `json:"metrics"`
	Grade       Grade           `json:"grade"`
	GradeSource GradeSource     `json:"grade_source"`
	Notes       string          `json:"notes"`
	CapturedAt  *time.Time      `json:"captured_at"`
	PhotoKey    *string         `json:"photo_key,omitempty"`
}

// Schedule defines a recurring action within an experiment.
type Schedule struct {
	Base
	ExperimentID string         `json:"experiment_id"`
	Name         string         `json:"name"`
	Action       ScheduleAction `json:"action"`
	IntervalDays int            `json:"interval_days"`
	NextDueAt    time.Time      `json:"next_due_at"`
}

// RotationEvent is an append-only log entry recording a tray move.
type RotationEvent struct {
	Base
	ExperimentID string    `json:"experiment_id"`
	TrayID       string    `json:"tray_id"`
	FromSlotID   *string   `json:"from_slot_id"`
	ToSlotID     *string   `json:"to_slot_id"`
	Actor        string    `json:"actor"`
	Notes        *string   `json:"notes,omitempty"`
	RotatedAt    time.Time `json:"rotated_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
