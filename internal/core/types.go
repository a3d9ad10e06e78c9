// Package core implements the transactional service layer for GrowTrialLab:
// entity lifecycle, changeset application, baseline grading, placement
// grouping, schedules, and the rotation log.
package core

import (
	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

type (
	// Tent aliases domain.Tent for service operations.
	Tent = domain.Tent
	// Slot aliases domain.Slot.
	Slot = domain.Slot
	// Tray aliases domain.Tray.
	Tray = domain.Tray
	// Plant aliases domain.Plant.
	Plant = domain.Plant
	// Recipe aliases domain.Recipe.
	Recipe = domain.Recipe
	// Experiment aliases domain.Experiment.
	Experiment = domain.Experiment
	// BaselineMetrics aliases domain.BaselineMetrics.
	BaselineMetrics = domain.BaselineMetrics
	// BaselineRecord aliases domain.BaselineRecord.
	BaselineRecord = domain.BaselineRecord
	// Schedule aliases domain.Schedule.
	Schedule = domain.Schedule
	// RotationEvent aliases domain.RotationEvent.
	RotationEvent = domain.RotationEvent
	// Result aliases domain.Result.
	Result = domain.Result
	// Violation aliases domain.Violation.
	Violation = domain.Violation
	// Change aliases domain.Change.
	Change = domain.Change
	// Rule aliases domain.Rule.
	Rule = domain.Rule
	// RuleView aliases domain.RuleView.
	RuleView = domain.RuleView
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)
