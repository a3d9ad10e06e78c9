package core

import (
	"context"
	"fmt"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// NewSlotOccupancyRule returns the rule enforcing that a slot holds at most
// one tray.
func NewSlotOccupancyRule() domain.Rule {
	return slotOccupancyRule{}
}

type slotOccupancyRule struct{}

func (slotOccupancyRule) Name() string { return "slot_occupancy" }

func (slotOccupancyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	occupants := make(map[string][]string)
	for _, tray := range view.ListTrays() {
		if tray.SlotID == nil {
			continue
		}
		occupants[*tray.SlotID] = append(occupants[*tray.SlotID], tray.ID)
	}

	res := domain.Result{}
	for slotID, trayIDs := range occupants {
		if len(trayIDs) <= 1 {
			continue
		}
		slot, ok := view.FindSlot(slotID)
		label := slotID
		if ok {
			label = slot.Label
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "slot_occupancy",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("slot %s (%s) occupied by %d trays", label, slotID, len(trayIDs)),
			Entity:   domain.EntitySlot,
			EntityID: slotID,
		})
	}
	return res, nil
}
