package core

import (
	"context"
	"fmt"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// NewBaselineLockRule returns the rule that freezes baseline records while
// their experiment's baseline phase is locked.
func NewBaselineLockRule() domain.Rule {
	return baselineLockRule{}
}

type baselineLockRule struct{}

func (baselineLockRule) Name() string { return "baseline_lock" }

func (baselineLockRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityBaseline {
			continue
		}
		record, ok := baselineFromChange(change)
		if !ok {
			continue
		}
		plant, ok := view.FindPlant(record.PlantID)
		if !ok {
			// Plant deleted in the same transaction; nothing left to guard.
			continue
		}
		experiment, ok := view.FindExperiment(plant.ExperimentID)
		if !ok || !experiment.BaselineLocked {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "baseline_lock",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("experiment %s baseline phase is locked; baseline for plant %s cannot change", experiment.Code, plant.ID),
			Entity:   domain.EntityBaseline,
			EntityID: record.ID,
		})
	}
	return res, nil
}

func baselineFromChange(change domain.Change) (domain.BaselineRecord, bool) {
	switch change.Action {
	case domain.ActionCreate, domain.ActionUpdate:
		record, ok := change.After.(domain.BaselineRecord)
		return record, ok
	case domain.ActionDelete:
		record, ok := change.Before.(domain.BaselineRecord)
		return record, ok
	default:
		return domain.BaselineRecord{}, false
	}
}
