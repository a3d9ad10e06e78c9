package core

import (
	"context"
	"fmt"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// NewTrayCapacityRule returns the default in-transaction rule enforcing tray
// capacity constraints.
func NewTrayCapacityRule() domain.Rule {
	return trayCapacityRule{}
}

type trayCapacityRule struct{}

func (trayCapacityRule) Name() string { return "tray_capacity" }

func (trayCapacityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	occupancy := make(map[string]int)
	for _, plant := range view.ListPlants() {
		if plant.TrayID == nil {
			continue
		}
		occupancy[*plant.TrayID]++
	}

	res := domain.Result{}
	for _, tray := range view.ListTrays() {
		count := occupancy[tray.ID]
		if count > tray.Capacity {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "tray_capacity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("tray %s (%s) over capacity: %d/%d plants", tray.Label, tray.ID, count, tray.Capacity),
				Entity:   domain.EntityTray,
				EntityID: tray.ID,
			})
		}
	}
	return res, nil
}
