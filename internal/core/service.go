package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tannerln7/GrowTrialLab-sub001/internal/draft"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/grading"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/infra/persistence/memory"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/layout"
	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// Service exposes higher-level transactional operations for the core schema.
type Service struct {
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine gets the default policy set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// CreateTent persists a new tent.
func (s *Service) CreateTent(ctx context.Context, tent Tent) (Tent, Result, error) {
	var created Tent
	var res Result
	err := s.instrument(ctx, "create_tent", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateTent(tent)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateTent mutates a tent using the provided mutator.
func (s *Service) UpdateTent(ctx context.Context, id string, mutator func(*Tent) error) (Tent, Result, error) {
	var updated Tent
	var res Result
	err := s.instrument(ctx, "update_tent", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateTent(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteTent removes a tent record.
func (s *Service) DeleteTent(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_tent", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteTent(id)
		})
		return err
	})
	return res, err
}

// CreateSlot persists a new shelf slot.
func (s *Service) CreateSlot(ctx context.Context, slot Slot) (Slot, Result, error) {
	var created Slot
	var res Result
	err := s.instrument(ctx, "create_slot", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateSlot(slot)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateSlot mutates an existing slot.
func (s *Service) UpdateSlot(ctx context.Context, id string, mutator func(*Slot) error) (Slot, Result, error) {
	var updated Slot
	var res Result
	err := s.instrument(ctx, "update_slot", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateSlot(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteSlot removes a slot record.
func (s *Service) DeleteSlot(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_slot", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteSlot(id)
		})
		return err
	})
	return res, err
}

// CreateTray persists a new tray.
func (s *Service) CreateTray(ctx context.Context, tray Tray) (Tray, Result, error) {
	var created Tray
	var res Result
	err := s.instrument(ctx, "create_tray", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateTray(tray)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateTray mutates an existing tray.
func (s *Service) UpdateTray(ctx context.Context, id string, mutator func(*Tray) error) (Tray, Result, error) {
	var updated Tray
	var res Result
	err := s.instrument(ctx, "update_tray", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateTray(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteTray removes a tray record.
func (s *Service) DeleteTray(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_tray", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteTray(id)
		})
		return err
	})
	return res, err
}

// CreatePlant persists a new plant.
func (s *Service) CreatePlant(ctx context.Context, plant Plant) (Plant, Result, error) {
	var created Plant
	var res Result
	err := s.instrument(ctx, "create_plant", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreatePlant(plant)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdatePlant mutates a plant using the provided mutator.
func (s *Service) UpdatePlant(ctx context.Context, id string, mutator func(*Plant) error) (Plant, Result, error) {
	var updated Plant
	var res Result
	err := s.instrument(ctx, "update_plant", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdatePlant(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeletePlant removes a plant record.
func (s *Service) DeletePlant(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_plant", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeletePlant(id)
		})
		return err
	})
	return res, err
}

// CreateRecipe persists a new feeding recipe.
func (s *Service) CreateRecipe(ctx context.Context, recipe Recipe) (Recipe, Result, error) {
	var created Recipe
	var res Result
	err := s.instrument(ctx, "create_recipe", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateRecipe(recipe)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateRecipe mutates an existing recipe.
func (s *Service) UpdateRecipe(ctx context.Context, id string, mutator func(*Recipe) error) (Recipe, Result, error) {
	var updated Recipe
	var res Result
	err := s.instrument(ctx, "update_recipe", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateRecipe(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// DeleteRecipe removes a recipe record.
func (s *Service) DeleteRecipe(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_recipe", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteRecipe(id)
		})
		return err
	})
	return res, err
}

// CreateExperiment persists a new experiment.
func (s *Service) CreateExperiment(ctx context.Context, experiment Experiment) (Experiment, Result, error) {
	var created Experiment
	var res Result
	err := s.instrument(ctx, "create_experiment", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateExperiment(experiment)
			return txErr
		})
		return err
	})
	return created, res, err
}

// UpdateExperiment mutates an existing experiment.
func (s *Service) UpdateExperiment(ctx context.Context, id string, mutator func(*Experiment) error) (Experiment, Result, error) {
	var updated Experiment
	var res Result
	err := s.instrument(ctx, "update_experiment", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateExperiment(id, mutator)
			return txErr
		})
		return err
	})
	return updated, res, err
}

// CreateSchedule persists a recurring action schedule.
func (s *Service) CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, Result, error) {
	var created Schedule
	var res Result
	err := s.instrument(ctx, "create_schedule", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateSchedule(schedule)
			return txErr
		})
		return err
	})
	return created, res, err
}

// DeleteSchedule removes a schedule record.
func (s *Service) DeleteSchedule(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.instrument(ctx, "delete_schedule", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteSchedule(id)
		})
		return err
	})
	return res, err
}

// AssignPlantRecipe updates one plant's recipe reference, validating the
// target recipe in the same transaction. A nil recipeID unassigns.
func (s *Service) AssignPlantRecipe(ctx context.Context, plantID string, recipeID *string) (Plant, Result, error) {
	var updated Plant
	var res Result
	err := s.instrument(ctx, "assign_plant_recipe", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if recipeID != nil {
				if _, ok := tx.Snapshot().FindRecipe(*recipeID); !ok {
					return ErrNotFound{Entity: domain.EntityRecipe, ID: *recipeID}
				}
			}
			var txErr error
			updated, txErr = tx.UpdatePlant(plantID, func(p *Plant) error {
				p.RecipeID = recipeID
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// AssignPlantTray updates one plant's tray reference, validating the target
// tray in the same transaction. A nil trayID unassigns.
func (s *Service) AssignPlantTray(ctx context.Context, plantID string, trayID *string) (Plant, Result, error) {
	var updated Plant
	var res Result
	err := s.instrument(ctx, "assign_plant_tray", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if trayID != nil {
				if _, ok := tx.Snapshot().FindTray(*trayID); !ok {
					return ErrNotFound{Entity: domain.EntityTray, ID: *trayID}
				}
			}
			var txErr error
			updated, txErr = tx.UpdatePlant(plantID, func(p *Plant) error {
				p.TrayID = trayID
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// AssignTraySlot moves a tray into a slot (or out of any slot when slotID is
// nil). Slot occupancy is enforced by the rules engine at commit.
func (s *Service) AssignTraySlot(ctx context.Context, trayID string, slotID *string) (Tray, Result, error) {
	var updated Tray
	var res Result
	err := s.instrument(ctx, "assign_tray_slot", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if slotID != nil {
				if _, ok := tx.Snapshot().FindSlot(*slotID); !ok {
					return ErrNotFound{Entity: domain.EntitySlot, ID: *slotID}
				}
			}
			var txErr error
			updated, txErr = tx.UpdateTray(trayID, func(t *Tray) error {
				t.SlotID = slotID
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// ApplyRecipeChangeset applies a computed recipe-assignment changeset in one
// transaction: either every entry commits or none does. Per-entry validation
// failures abort the transaction with a *draft.SubmitError aggregating reason
// counts and a capped rejection list. An empty changeset is a local no-op and
// never reaches the store.
func (s *Service) ApplyRecipeChangeset(ctx context.Context, changes draft.Changeset[draft.Ref]) (Result, error) {
	if len(changes) == 0 {
		return Result{}, nil
	}
	var res Result
	err := s.instrument(ctx, "apply_recipe_changeset", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			subErr := &draft.SubmitError{Message: "recipe changeset rejected"}
			for _, entry := range changes {
				plant, ok := view.FindPlant(entry.EntityID)
				if !ok {
					subErr.Reject(entry.EntityID, ReasonUnknownPlant)
					continue
				}
				if entry.Value.Valid {
					if _, ok := view.FindRecipe(entry.Value.ID); !ok {
						subErr.Reject(entry.EntityID, ReasonUnknownRecipe)
						continue
					}
				}
				if experiment, ok := view.FindExperiment(plant.ExperimentID); ok && experiment.BaselineLocked {
					subErr.Reject(entry.EntityID, ReasonExperimentLocked)
					continue
				}
			}
			if !subErr.Empty() {
				return subErr
			}
			for _, entry := range changes {
				recipeID := entry.Value.Ptr()
				if _, txErr := tx.UpdatePlant(entry.EntityID, func(p *Plant) error {
					p.RecipeID = recipeID
					return nil
				}); txErr != nil {
					return txErr
				}
			}
			return nil
		})
		return err
	})
	if err == nil {
		s.logger.Info("recipe changeset applied", "entries", len(changes))
	}
	return res, err
}

// ApplyPlacementChangeset applies a computed plant-to-tray changeset in one
// transaction with the same all-or-nothing semantics as recipe changesets.
// Moving a plant into a tray requires a baseline record when the plant's
// experiment demands one, and a locked baseline phase rejects every entry for
// that experiment's plants. Tray capacity is enforced by the rules engine at
// commit, so an over-capacity result aborts with a RuleViolationError.
func (s *Service) ApplyPlacementChangeset(ctx context.Context, changes draft.Changeset[draft.Ref]) (Result, error) {
	if len(changes) == 0 {
		return Result{}, nil
	}
	var res Result
	err := s.instrument(ctx, "apply_placement_changeset", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			subErr := &draft.SubmitError{Message: "placement changeset rejected"}
			for _, entry := range changes {
				plant, ok := view.FindPlant(entry.EntityID)
				if !ok {
					subErr.Reject(entry.EntityID, ReasonUnknownPlant)
					continue
				}
				if entry.Value.Valid {
					if _, ok := view.FindTray(entry.Value.ID); !ok {
						subErr.Reject(entry.EntityID, ReasonUnknownTray)
						continue
					}
				}
				experiment, ok := view.FindExperiment(plant.ExperimentID)
				if !ok {
					continue
				}
				if experiment.BaselineLocked {
					subErr.Reject(entry.EntityID, ReasonExperimentLocked)
					continue
				}
				if entry.Value.Valid && experiment.RequireBaseline {
					if _, ok := view.FindBaselineByPlant(plant.ID); !ok {
						subErr.Reject(entry.EntityID, ReasonNeedsBaseline)
					}
				}
			}
			if !subErr.Empty() {
				return subErr
			}
			for _, entry := range changes {
				trayID := entry.Value.Ptr()
				if _, txErr := tx.UpdatePlant(entry.EntityID, func(p *Plant) error {
					p.TrayID = trayID
					return nil
				}); txErr != nil {
					return txErr
				}
			}
			return nil
		})
		return err
	})
	if err == nil {
		s.logger.Info("placement changeset applied", "entries", len(changes))
	}
	return res, err
}

// ApplyTraySlotChangeset applies a computed tray-to-slot changeset in one
// transaction, all or nothing. Slot occupancy is enforced by the rules engine
// at commit, so moving a tray into a taken slot aborts with a
// RuleViolationError.
func (s *Service) ApplyTraySlotChangeset(ctx context.Context, changes draft.Changeset[draft.Ref]) (Result, error) {
	if len(changes) == 0 {
		return Result{}, nil
	}
	var res Result
	err := s.instrument(ctx, "apply_tray_slot_changeset", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			subErr := &draft.SubmitError{Message: "tray slot changeset rejected"}
			for _, entry := range changes {
				if _, ok := view.FindTray(entry.EntityID); !ok {
					subErr.Reject(entry.EntityID, ReasonUnknownTray)
					continue
				}
				if entry.Value.Valid {
					if _, ok := view.FindSlot(entry.Value.ID); !ok {
						subErr.Reject(entry.EntityID, ReasonUnknownSlot)
					}
				}
			}
			if !subErr.Empty() {
				return subErr
			}
			for _, entry := range changes {
				slotID := entry.Value.Ptr()
				if _, txErr := tx.UpdateTray(entry.EntityID, func(t *Tray) error {
					t.SlotID = slotID
					return nil
				}); txErr != nil {
					return txErr
				}
			}
			return nil
		})
		return err
	})
	if err == nil {
		s.logger.Info("tray slot changeset applied", "entries", len(changes))
	}
	return res, err
}

// EnqueueBaseline creates the defaulted baseline record for a plant entering
// the baseline queue: every metric at the neutral value, grade computed from
// those defaults, no captured-at until a researcher saves real metrics.
// Idempotent: a plant with an existing record keeps it unchanged.
func (s *Service) EnqueueBaseline(ctx context.Context, plantID string) (BaselineRecord, Result, error) {
	var record BaselineRecord
	var res Result
	err := s.instrument(ctx, "enqueue_baseline", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindPlant(plantID); !ok {
				return ErrNotFound{Entity: domain.EntityPlant, ID: plantID}
			}
			if existing, found := view.FindBaselineByPlant(plantID); found {
				record = existing
				return nil
			}
			metrics := grading.NeutralMetrics()
			var txErr error
			record, txErr = tx.CreateBaseline(BaselineRecord{
				PlantID:     plantID,
				Metrics:     metrics,
				Grade:       grading.ComputeAutoGrade(metrics),
				GradeSource: domain.GradeSourceAuto,
			})
			return txErr
		})
		return err
	})
	return record, res, err
}

// SaveBaseline records or revises a plant's baseline metrics. Out-of-range
// metrics are clamped, the recommended grade is recomputed, and a pinned
// manual grade survives metric edits. The baseline lock rule blocks the
// commit while the plant's experiment is locked.
func (s *Service) SaveBaseline(ctx context.Context, plantID string, metrics BaselineMetrics, notes string, capturedAt *time.Time, photoKey *string) (BaselineRecord, Result, error) {
	var saved BaselineRecord
	var res Result
	err := s.instrument(ctx, "save_baseline", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			clamped := grading.ClampMetrics(metrics)
			existing, found := tx.Snapshot().FindBaselineByPlant(plantID)
			var txErr error
			if found {
				saved, txErr = tx.UpdateBaseline(existing.ID, func(b *BaselineRecord) error {
					b.Metrics = clamped
					b.Grade, b.GradeSource = grading.Reconcile(clamped, b.GradeSource, b.Grade)
					b.Notes = notes
					if capturedAt != nil {
						b.CapturedAt = capturedAt
					}
					if photoKey != nil {
						b.PhotoKey = photoKey
					}
					return nil
				})
				return txErr
			}
			captured := capturedAt
			if captured == nil {
				now := s.now()
				captured = &now
			}
			saved, txErr = tx.CreateBaseline(BaselineRecord{
				PlantID:     plantID,
				Metrics:     clamped,
				Grade:       grading.ComputeAutoGrade(clamped),
				GradeSource: domain.GradeSourceAuto,
				Notes:       notes,
				CapturedAt:  captured,
				PhotoKey:    photoKey,
			})
			return txErr
		})
		return err
	})
	return saved, res, err
}

// SaveBaselinePhotoKey attaches an uploaded photo's blob key to a plant's
// baseline record.
func (s *Service) SaveBaselinePhotoKey(ctx context.Context, plantID, photoKey string) (BaselineRecord, Result, error) {
	var updated BaselineRecord
	var res Result
	err := s.instrument(ctx, "save_baseline_photo_key", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			existing, found := tx.Snapshot().FindBaselineByPlant(plantID)
			if !found {
				return ErrNotFound{Entity: domain.EntityBaseline, ID: plantID}
			}
			var txErr error
			updated, txErr = tx.UpdateBaseline(existing.ID, func(b *BaselineRecord) error {
				b.PhotoKey = &photoKey
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// OverrideBaselineGrade pins a researcher-picked grade on a plant's baseline.
// Picking the grade the algorithm already recommends collapses the override
// back to auto.
func (s *Service) OverrideBaselineGrade(ctx context.Context, plantID string, picked domain.Grade) (BaselineRecord, Result, error) {
	var updated BaselineRecord
	var res Result
	err := s.instrument(ctx, "override_baseline_grade", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			existing, found := tx.Snapshot().FindBaselineByPlant(plantID)
			if !found {
				return ErrNotFound{Entity: domain.EntityBaseline, ID: plantID}
			}
			var txErr error
			updated, txErr = tx.UpdateBaseline(existing.ID, func(b *BaselineRecord) error {
				b.Grade, b.GradeSource = grading.SelectGrade(b.Metrics, picked)
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// RevertBaselineGrade drops any manual override in one action, returning the
// grade to the algorithm's recommendation.
func (s *Service) RevertBaselineGrade(ctx context.Context, plantID string) (BaselineRecord, Result, error) {
	var updated BaselineRecord
	var res Result
	err := s.instrument(ctx, "revert_baseline_grade", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			existing, found := tx.Snapshot().FindBaselineByPlant(plantID)
			if !found {
				return ErrNotFound{Entity: domain.EntityBaseline, ID: plantID}
			}
			var txErr error
			updated, txErr = tx.UpdateBaseline(existing.ID, func(b *BaselineRecord) error {
				b.Grade, b.GradeSource = grading.RevertToAuto(b.Metrics)
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// LockBaselinePhase engages the baseline lock on an experiment, freezing its
// plants' baseline records.
func (s *Service) LockBaselinePhase(ctx context.Context, experimentID string) (Experiment, Result, error) {
	var updated Experiment
	var res Result
	err := s.instrument(ctx, "lock_baseline_phase", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateExperiment(experimentID, func(e *Experiment) error {
				if e.BaselineLocked {
					return nil
				}
				now := s.now()
				e.BaselineLocked = true
				e.LockedAt = &now
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// UnlockBaselinePhase explicitly releases the baseline lock.
func (s *Service) UnlockBaselinePhase(ctx context.Context, experimentID string) (Experiment, Result, error) {
	var updated Experiment
	var res Result
	err := s.instrument(ctx, "unlock_baseline_phase", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateExperiment(experimentID, func(e *Experiment) error {
				e.BaselineLocked = false
				e.LockedAt = nil
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// RotateTray moves a tray to a new slot (or off the shelves entirely) and
// appends an immutable rotation log entry capturing the move.
func (s *Service) RotateTray(ctx context.Context, trayID string, toSlotID *string, actor string, notes *string) (RotationEvent, Result, error) {
	var event RotationEvent
	var res Result
	err := s.instrument(ctx, "rotate_tray", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			tray, ok := view.FindTray(trayID)
			if !ok {
				return ErrNotFound{Entity: domain.EntityTray, ID: trayID}
			}
			if toSlotID != nil {
				if _, ok := view.FindSlot(*toSlotID); !ok {
					return ErrNotFound{Entity: domain.EntitySlot, ID: *toSlotID}
				}
			}
			from := tray.SlotID
			if _, txErr := tx.UpdateTray(trayID, func(t *Tray) error {
				t.SlotID = toSlotID
				return nil
			}); txErr != nil {
				return txErr
			}
			var txErr error
			event, txErr = tx.AppendRotation(RotationEvent{
				TrayID:     trayID,
				FromSlotID: from,
				ToSlotID:   toSlotID,
				Actor:      actor,
				Notes:      notes,
				RotatedAt:  s.now(),
			})
			return txErr
		})
		return err
	})
	return event, res, err
}

// DueSchedules returns schedules whose next-due time is at or before asOf,
// ordered by due time.
func (s *Service) DueSchedules(ctx context.Context, asOf time.Time) ([]Schedule, error) {
	var due []Schedule
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, schedule := range view.ListSchedules() {
			if !schedule.NextDueAt.After(asOf) {
				due = append(due, schedule)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSchedulesByDue(due)
	return due, nil
}

func sortSchedulesByDue(schedules []Schedule) {
	sort.Slice(schedules, func(i, j int) bool {
		if !schedules[i].NextDueAt.Equal(schedules[j].NextDueAt) {
			return schedules[i].NextDueAt.Before(schedules[j].NextDueAt)
		}
		return schedules[i].ID < schedules[j].ID
	})
}

// CompleteSchedule records a schedule run, advancing next-due past the
// completion time in whole intervals.
func (s *Service) CompleteSchedule(ctx context.Context, id string, completedAt time.Time) (Schedule, Result, error) {
	var updated Schedule
	var res Result
	err := s.instrument(ctx, "complete_schedule", func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateSchedule(id, func(sc *Schedule) error {
				next := sc.NextDueAt
				for !next.After(completedAt) {
					next = next.AddDate(0, 0, sc.IntervalDays)
				}
				sc.NextDueAt = next
				return nil
			})
			return txErr
		})
		return err
	})
	return updated, res, err
}

// GroupedPlacement builds the hierarchical tent → shelf → slot → tray
// placement tree over a consistent snapshot of the store.
func (s *Service) GroupedPlacement(ctx context.Context) (layout.Tree, error) {
	var tree layout.Tree
	err := s.store.View(ctx, func(view TransactionView) error {
		tree = layout.BuildTree(view.ListTents(), view.ListSlots(), view.ListTrays(), view.ListPlants())
		return nil
	})
	if err != nil {
		return layout.Tree{}, fmt.Errorf("build placement tree: %w", err)
	}
	return tree, nil
}

// PersistedRecipeRefs snapshots every plant's persisted recipe assignment,
// keyed by plant ID, for seeding a draft session.
func (s *Service) PersistedRecipeRefs(ctx context.Context) (map[string]draft.Ref, error) {
	refs := make(map[string]draft.Ref)
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, plant := range view.ListPlants() {
			refs[plant.ID] = draft.RefFromPtr(plant.RecipeID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// PersistedTrayRefs snapshots every plant's persisted tray assignment, keyed
// by plant ID, for seeding a draft session.
func (s *Service) PersistedTrayRefs(ctx context.Context) (map[string]draft.Ref, error) {
	refs := make(map[string]draft.Ref)
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, plant := range view.ListPlants() {
			refs[plant.ID] = draft.RefFromPtr(plant.TrayID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// PersistedSlotRefs snapshots every tray's persisted slot assignment, keyed
// by tray ID, for seeding a draft session.
func (s *Service) PersistedSlotRefs(ctx context.Context) (map[string]draft.Ref, error) {
	refs := make(map[string]draft.Ref)
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, tray := range view.ListTrays() {
			refs[tray.ID] = draft.RefFromPtr(tray.SlotID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ListTents returns all tents.
func (s *Service) ListTents() []Tent { return s.store.ListTents() }

// ListSlots returns all slots.
func (s *Service) ListSlots() []Slot { return s.store.ListSlots() }

// ListTrays returns all trays.
func (s *Service) ListTrays() []Tray { return s.store.ListTrays() }

// ListPlants returns all plants.
func (s *Service) ListPlants() []Plant { return s.store.ListPlants() }

// ListRecipes returns all recipes.
func (s *Service) ListRecipes() []Recipe { return s.store.ListRecipes() }

// ListExperiments returns all experiments.
func (s *Service) ListExperiments() []Experiment { return s.store.ListExperiments() }

// ListBaselines returns all baseline records.
func (s *Service) ListBaselines() []BaselineRecord { return s.store.ListBaselines() }

// ListSchedules returns all schedules.
func (s *Service) ListSchedules() []Schedule { return s.store.ListSchedules() }

// ListRotations returns the rotation log.
func (s *Service) ListRotations() []RotationEvent { return s.store.ListRotations() }

// GetPlant fetches one plant.
func (s *Service) GetPlant(id string) (Plant, bool) { return s.store.GetPlant(id) }

// GetTray fetches one tray.
func (s *Service) GetTray(id string) (Tray, bool) { return s.store.GetTray(id) }

// GetExperiment fetches one experiment.
func (s *Service) GetExperiment(id string) (Experiment, bool) { return s.store.GetExperiment(id) }
