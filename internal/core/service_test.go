package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tannerln7/GrowTrialLab-sub001/internal/draft"
	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

type fixture struct {
	svc        *Service
	experiment Experiment
	tent       Tent
	slot       Slot
	tray       Tray
	recipe     Recipe
	plants     []Plant
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	ctx := context.Background()
	svc := NewInMemoryService(nil, opts...)

	experiment, _, err := svc.CreateExperiment(ctx, Experiment{Code: "EXP-1", Title: "Basil trial"})
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	tnt, _, err := svc.CreateTent(ctx, Tent{Name: "North", Zone: "veg"})
	if err != nil {
		t.Fatalf("create tent: %v", err)
	}
	sl, _, err := svc.CreateSlot(ctx, Slot{TentID: tnt.ID, Label: "A1", ShelfIndex: 1, SlotIndex: 1})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	tr, _, err := svc.CreateTray(ctx, Tray{Label: "Tray 1", Capacity: 4, SlotID: &sl.ID})
	if err != nil {
		t.Fatalf("create tray: %v", err)
	}
	recipe, _, err := svc.CreateRecipe(ctx, Recipe{Name: "Veg mix", Phase: "veg"})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}

	f := &fixture{svc: svc, experiment: experiment, tent: tnt, slot: sl, tray: tr, recipe: recipe}
	for _, code := range []string{"B-01", "B-02", "B-03"} {
		p, _, err := svc.CreatePlant(ctx, Plant{Code: code, Species: "basil", ExperimentID: experiment.ID})
		if err != nil {
			t.Fatalf("create plant %s: %v", code, err)
		}
		f.plants = append(f.plants, p)
	}
	return f
}

func TestApplyRecipeChangesetAppliesAtomically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	changes := draft.Changeset[draft.Ref]{
		{EntityID: f.plants[0].ID, Value: draft.RefTo(f.recipe.ID)},
		{EntityID: f.plants[1].ID, Value: draft.RefTo(f.recipe.ID)},
	}
	if _, err := f.svc.ApplyRecipeChangeset(ctx, changes); err != nil {
		t.Fatalf("apply changeset: %v", err)
	}
	for _, id := range []string{f.plants[0].ID, f.plants[1].ID} {
		p, _ := f.svc.GetPlant(id)
		if p.RecipeID == nil || *p.RecipeID != f.recipe.ID {
			t.Fatalf("plant %s recipe not applied: %+v", id, p.RecipeID)
		}
	}

	// Unassign through an explicit null value.
	if _, err := f.svc.ApplyRecipeChangeset(ctx, draft.Changeset[draft.Ref]{
		{EntityID: f.plants[0].ID, Value: draft.NullRef()},
	}); err != nil {
		t.Fatalf("apply unassign: %v", err)
	}
	p, _ := f.svc.GetPlant(f.plants[0].ID)
	if p.RecipeID != nil {
		t.Fatalf("plant recipe should be unassigned, got %v", *p.RecipeID)
	}
}

func TestApplyRecipeChangesetRejectsWholesale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	changes := draft.Changeset[draft.Ref]{
		{EntityID: f.plants[0].ID, Value: draft.RefTo(f.recipe.ID)}, // valid
		{EntityID: f.plants[1].ID, Value: draft.RefTo("nope")},      // unknown recipe
		{EntityID: "ghost", Value: draft.RefTo(f.recipe.ID)},        // unknown plant
	}
	_, err := f.svc.ApplyRecipeChangeset(ctx, changes)

	var subErr *draft.SubmitError
	if !errors.As(err, &subErr) {
		t.Fatalf("want *draft.SubmitError, got %v", err)
	}
	if subErr.ReasonCounts[ReasonUnknownRecipe] != 1 || subErr.ReasonCounts[ReasonUnknownPlant] != 1 {
		t.Fatalf("reason counts = %+v", subErr.ReasonCounts)
	}
	// The valid entry must not have been applied.
	p, _ := f.svc.GetPlant(f.plants[0].ID)
	if p.RecipeID != nil {
		t.Fatal("rejected changeset must apply nothing")
	}
}

func TestApplyChangesetEmptyIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.svc.ApplyRecipeChangeset(ctx, nil); err != nil {
		t.Fatalf("empty recipe changeset: %v", err)
	}
	if _, err := f.svc.ApplyPlacementChangeset(ctx, draft.Changeset[draft.Ref]{}); err != nil {
		t.Fatalf("empty placement changeset: %v", err)
	}
}

func TestApplyPlacementChangesetRequiresBaseline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, _, err := f.svc.UpdateExperiment(ctx, f.experiment.ID, func(e *Experiment) error {
		e.RequireBaseline = true
		return nil
	}); err != nil {
		t.Fatalf("require baseline: %v", err)
	}

	changes := draft.Changeset[draft.Ref]{{EntityID: f.plants[0].ID, Value: draft.RefTo(f.tray.ID)}}
	_, err := f.svc.ApplyPlacementChangeset(ctx, changes)
	var subErr *draft.SubmitError
	if !errors.As(err, &subErr) || subErr.ReasonCounts[ReasonNeedsBaseline] != 1 {
		t.Fatalf("want needs_baseline rejection, got %v", err)
	}

	// Capturing a baseline clears the rejection.
	if _, _, err := f.svc.SaveBaseline(ctx, f.plants[0].ID, BaselineMetrics{Vigor: 4, FeatureCount: 4, FeatureQuality: 4, ColorTurgor: 4, DamagePests: 4}, "", nil, nil); err != nil {
		t.Fatalf("save baseline: %v", err)
	}
	if _, err := f.svc.ApplyPlacementChangeset(ctx, changes); err != nil {
		t.Fatalf("placement after baseline: %v", err)
	}
	p, _ := f.svc.GetPlant(f.plants[0].ID)
	if p.TrayID == nil || *p.TrayID != f.tray.ID {
		t.Fatalf("plant not placed: %+v", p.TrayID)
	}
}

func TestApplyPlacementChangesetBlockedByTrayCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	small, _, err := f.svc.CreateTray(ctx, Tray{Label: "Tiny", Capacity: 1})
	if err != nil {
		t.Fatalf("create tray: %v", err)
	}

	changes := draft.Changeset[draft.Ref]{
		{EntityID: f.plants[0].ID, Value: draft.RefTo(small.ID)},
		{EntityID: f.plants[1].ID, Value: draft.RefTo(small.ID)},
	}
	_, err = f.svc.ApplyPlacementChangeset(ctx, changes)
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("want RuleViolationError, got %v", err)
	}
	if len(ruleErr.Result.Violations) == 0 || ruleErr.Result.Violations[0].Rule != "tray_capacity" {
		t.Fatalf("violations = %+v", ruleErr.Result.Violations)
	}
	for _, p := range []Plant{f.plants[0], f.plants[1]} {
		got, _ := f.svc.GetPlant(p.ID)
		if got.TrayID != nil {
			t.Fatal("blocked transaction must not move any plant")
		}
	}
}

func TestAssignTraySlotOccupancyBlocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	second, _, err := f.svc.CreateTray(ctx, Tray{Label: "Second", Capacity: 4})
	if err != nil {
		t.Fatalf("create tray: %v", err)
	}
	// f.tray already occupies the slot.
	_, _, err = f.svc.AssignTraySlot(ctx, second.ID, &f.slot.ID)
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("want RuleViolationError, got %v", err)
	}
	if ruleErr.Result.Violations[0].Rule != "slot_occupancy" {
		t.Fatalf("violations = %+v", ruleErr.Result.Violations)
	}
}

func TestSaveBaselineComputesAndClamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	record, _, err := f.svc.SaveBaseline(ctx, f.plants[0].ID, BaselineMetrics{Vigor: 9, FeatureCount: 0, FeatureQuality: 3, ColorTurgor: 3, DamagePests: 3}, "first pass", nil, nil)
	if err != nil {
		t.Fatalf("save baseline: %v", err)
	}
	neutral := BaselineMetrics{Vigor: 3, FeatureCount: 3, FeatureQuality: 3, ColorTurgor: 3, DamagePests: 3}
	if record.Metrics != neutral {
		t.Fatalf("metrics not clamped to neutral: %+v", record.Metrics)
	}
	if record.Grade != domain.GradeB || record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("grade = %s/%s", record.Grade, record.GradeSource)
	}
	if record.CapturedAt == nil {
		t.Fatal("captured_at should default to now")
	}

	// Re-saving updates the same record, never creates a second one.
	updated, _, err := f.svc.SaveBaseline(ctx, f.plants[0].ID, BaselineMetrics{Vigor: 5, FeatureCount: 5, FeatureQuality: 5, ColorTurgor: 5, DamagePests: 5}, "second pass", nil, nil)
	if err != nil {
		t.Fatalf("re-save baseline: %v", err)
	}
	if updated.ID != record.ID {
		t.Fatalf("baseline duplicated: %s vs %s", updated.ID, record.ID)
	}
	if updated.Grade != domain.GradeA {
		t.Fatalf("auto grade not recomputed: %s", updated.Grade)
	}
	if got := f.svc.ListBaselines(); len(got) != 1 {
		t.Fatalf("baseline count = %d", len(got))
	}
}

func TestBaselineOverrideAndRevert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fives := BaselineMetrics{Vigor: 5, FeatureCount: 5, FeatureQuality: 5, ColorTurgor: 5, DamagePests: 5}
	if _, _, err := f.svc.SaveBaseline(ctx, f.plants[0].ID, fives, "", nil, nil); err != nil {
		t.Fatalf("save baseline: %v", err)
	}

	record, _, err := f.svc.OverrideBaselineGrade(ctx, f.plants[0].ID, domain.GradeC)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if record.Grade != domain.GradeC || record.GradeSource != domain.GradeSourceManual {
		t.Fatalf("override not pinned: %s/%s", record.Grade, record.GradeSource)
	}

	// Metric edits keep the manual override pinned.
	record, _, err = f.svc.SaveBaseline(ctx, f.plants[0].ID, BaselineMetrics{Vigor: 4, FeatureCount: 4, FeatureQuality: 4, ColorTurgor: 4, DamagePests: 4}, "", nil, nil)
	if err != nil {
		t.Fatalf("save with override: %v", err)
	}
	if record.Grade != domain.GradeC || record.GradeSource != domain.GradeSourceManual {
		t.Fatalf("override lost on metric edit: %s/%s", record.Grade, record.GradeSource)
	}

	record, _, err = f.svc.RevertBaselineGrade(ctx, f.plants[0].ID)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if record.Grade != domain.GradeA || record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("revert wrong: %s/%s", record.Grade, record.GradeSource)
	}

	// Picking the auto grade collapses instead of pinning.
	record, _, err = f.svc.OverrideBaselineGrade(ctx, f.plants[0].ID, domain.GradeA)
	if err != nil {
		t.Fatalf("pick auto: %v", err)
	}
	if record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("agreeing pick should stay auto, got %s", record.GradeSource)
	}
}

func TestBaselineLockFreezesRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fives := BaselineMetrics{Vigor: 5, FeatureCount: 5, FeatureQuality: 5, ColorTurgor: 5, DamagePests: 5}
	if _, _, err := f.svc.SaveBaseline(ctx, f.plants[0].ID, fives, "", nil, nil); err != nil {
		t.Fatalf("save baseline: %v", err)
	}

	locked, _, err := f.svc.LockBaselinePhase(ctx, f.experiment.ID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !locked.BaselineLocked || locked.LockedAt == nil {
		t.Fatalf("lock state = %+v", locked)
	}

	_, _, err = f.svc.SaveBaseline(ctx, f.plants[0].ID, BaselineMetrics{Vigor: 2, FeatureCount: 2, FeatureQuality: 2, ColorTurgor: 2, DamagePests: 2}, "", nil, nil)
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) || ruleErr.Result.Violations[0].Rule != "baseline_lock" {
		t.Fatalf("locked edit should be blocked, got %v", err)
	}

	// Unchanged while locked.
	record := f.svc.ListBaselines()[0]
	if record.Metrics != fives {
		t.Fatalf("locked baseline mutated: %+v", record.Metrics)
	}

	if _, _, err := f.svc.UnlockBaselinePhase(ctx, f.experiment.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, _, err := f.svc.SaveBaseline(ctx, f.plants[0].ID, BaselineMetrics{Vigor: 2, FeatureCount: 2, FeatureQuality: 2, ColorTurgor: 2, DamagePests: 2}, "", nil, nil); err != nil {
		t.Fatalf("edit after unlock: %v", err)
	}
}

func TestApplyPlacementChangesetBlockedWhileLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, _, err := f.svc.LockBaselinePhase(ctx, f.experiment.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	changes := draft.Changeset[draft.Ref]{
		{EntityID: f.plants[0].ID, Value: draft.RefTo(f.tray.ID)},
		{EntityID: f.plants[1].ID, Value: draft.NullRef()}, // unassigns are frozen too
	}
	_, err := f.svc.ApplyPlacementChangeset(ctx, changes)
	var subErr *draft.SubmitError
	if !errors.As(err, &subErr) {
		t.Fatalf("want *draft.SubmitError, got %v", err)
	}
	if subErr.ReasonCounts[ReasonExperimentLocked] != 2 {
		t.Fatalf("reason counts = %+v", subErr.ReasonCounts)
	}
	p, _ := f.svc.GetPlant(f.plants[0].ID)
	if p.TrayID != nil {
		t.Fatal("locked placement changeset must apply nothing")
	}

	if _, _, err := f.svc.UnlockBaselinePhase(ctx, f.experiment.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := f.svc.ApplyPlacementChangeset(ctx, changes); err != nil {
		t.Fatalf("placement after unlock: %v", err)
	}
}

func TestApplyTraySlotChangeset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other, _, err := f.svc.CreateSlot(ctx, Slot{TentID: f.tent.ID, Label: "A2", ShelfIndex: 1, SlotIndex: 2})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	if _, err := f.svc.ApplyTraySlotChangeset(ctx, draft.Changeset[draft.Ref]{
		{EntityID: f.tray.ID, Value: draft.RefTo(other.ID)},
	}); err != nil {
		t.Fatalf("apply tray slot changeset: %v", err)
	}
	tr, _ := f.svc.GetTray(f.tray.ID)
	if tr.SlotID == nil || *tr.SlotID != other.ID {
		t.Fatalf("tray slot not applied: %+v", tr.SlotID)
	}

	_, err = f.svc.ApplyTraySlotChangeset(ctx, draft.Changeset[draft.Ref]{
		{EntityID: f.tray.ID, Value: draft.RefTo("nowhere")},
		{EntityID: "ghost", Value: draft.RefTo(f.slot.ID)},
	})
	var subErr *draft.SubmitError
	if !errors.As(err, &subErr) {
		t.Fatalf("want *draft.SubmitError, got %v", err)
	}
	if subErr.ReasonCounts[ReasonUnknownSlot] != 1 || subErr.ReasonCounts[ReasonUnknownTray] != 1 {
		t.Fatalf("reason counts = %+v", subErr.ReasonCounts)
	}
	tr, _ = f.svc.GetTray(f.tray.ID)
	if tr.SlotID == nil || *tr.SlotID != other.ID {
		t.Fatalf("rejected changeset moved the tray: %+v", tr.SlotID)
	}
}

func TestEnqueueBaselineCreatesNeutralRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	record, _, err := f.svc.EnqueueBaseline(ctx, f.plants[0].ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	neutral := BaselineMetrics{Vigor: 3, FeatureCount: 3, FeatureQuality: 3, ColorTurgor: 3, DamagePests: 3}
	if record.Metrics != neutral {
		t.Fatalf("queued metrics = %+v", record.Metrics)
	}
	if record.Grade != domain.GradeB || record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("queued grade = %s/%s", record.Grade, record.GradeSource)
	}
	if record.CapturedAt != nil {
		t.Fatalf("queued record should have no capture time: %v", record.CapturedAt)
	}

	// A second enqueue keeps the existing record untouched.
	again, _, err := f.svc.EnqueueBaseline(ctx, f.plants[0].ID)
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if again.ID != record.ID || again.Metrics != neutral {
		t.Fatalf("re-enqueue changed the record: %+v", again)
	}
	if len(f.svc.ListBaselines()) != 1 {
		t.Fatalf("want a single record, got %d", len(f.svc.ListBaselines()))
	}

	var notFound ErrNotFound
	if _, _, err := f.svc.EnqueueBaseline(ctx, "ghost"); !errors.As(err, &notFound) {
		t.Fatalf("unknown plant: %v", err)
	}
}

func TestRotateTrayMovesAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other, _, err := f.svc.CreateSlot(ctx, Slot{TentID: f.tent.ID, Label: "A2", ShelfIndex: 1, SlotIndex: 2})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	event, _, err := f.svc.RotateTray(ctx, f.tray.ID, &other.ID, "casey", nil)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if event.FromSlotID == nil || *event.FromSlotID != f.slot.ID {
		t.Fatalf("from slot = %v", event.FromSlotID)
	}
	if event.ToSlotID == nil || *event.ToSlotID != other.ID {
		t.Fatalf("to slot = %v", event.ToSlotID)
	}
	if event.ID == "" {
		t.Fatal("rotation event needs an ID")
	}

	moved, _ := f.svc.GetTray(f.tray.ID)
	if moved.SlotID == nil || *moved.SlotID != other.ID {
		t.Fatalf("tray not moved: %v", moved.SlotID)
	}
	if log := f.svc.ListRotations(); len(log) != 1 || log[0].Actor != "casey" {
		t.Fatalf("rotation log = %+v", log)
	}
}

func TestSchedulesDueAndComplete(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return base }))

	schedule, _, err := f.svc.CreateSchedule(ctx, Schedule{
		ExperimentID: f.experiment.ID,
		Name:         "weekly feed",
		Action:       domain.ScheduleActionFeed,
		IntervalDays: 7,
		NextDueAt:    base,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	due, err := f.svc.DueSchedules(ctx, base)
	if err != nil || len(due) != 1 {
		t.Fatalf("due = %+v, err %v", due, err)
	}

	updated, _, err := f.svc.CompleteSchedule(ctx, schedule.ID, base.Add(10*24*time.Hour))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Advances in whole intervals past the completion time: 7d then 14d.
	if want := base.AddDate(0, 0, 14); !updated.NextDueAt.Equal(want) {
		t.Fatalf("next due = %s, want %s", updated.NextDueAt, want)
	}

	due, err = f.svc.DueSchedules(ctx, base)
	if err != nil || len(due) != 0 {
		t.Fatalf("nothing should remain due, got %+v", due)
	}
}

func TestGroupedPlacement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, _, err := f.svc.AssignPlantTray(ctx, f.plants[0].ID, &f.tray.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	tree, err := f.svc.GroupedPlacement(ctx)
	if err != nil {
		t.Fatalf("grouped placement: %v", err)
	}
	if len(tree.Tents) != 1 || tree.Tents[0].PlantCount != 1 {
		t.Fatalf("tree = %+v", tree)
	}
	if len(tree.Unplaced.Plants) != 2 {
		t.Fatalf("unplaced plants = %d, want 2", len(tree.Unplaced.Plants))
	}
}

func TestPersistedRefsSeedCleanSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, _, err := f.svc.AssignPlantRecipe(ctx, f.plants[0].ID, &f.recipe.ID); err != nil {
		t.Fatalf("assign recipe: %v", err)
	}

	refs, err := f.svc.PersistedRecipeRefs(ctx)
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	session := draft.NewSession(refs)
	universe := make([]string, 0, len(refs))
	for id := range refs {
		universe = append(universe, id)
	}
	if cs := session.Changeset(universe); len(cs) != 0 {
		t.Fatalf("fresh session over persisted refs must be clean: %+v", cs)
	}
	if got := session.Resolve(f.plants[0].ID, draft.NullRef()); got != draft.RefTo(f.recipe.ID) {
		t.Fatalf("resolved ref = %+v", got)
	}
}
