package core

import (
	"fmt"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// ErrNotFound reports a missing entity reference.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Rejection reasons attached to changeset submission failures.
const (
	ReasonUnknownPlant     = "unknown_plant"
	ReasonUnknownRecipe    = "unknown_recipe"
	ReasonUnknownTray      = "unknown_tray"
	ReasonUnknownSlot      = "unknown_slot"
	ReasonNeedsBaseline    = "needs_baseline"
	ReasonExperimentLocked = "experiment_locked"
)
