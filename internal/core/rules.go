package core

import "github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewTrayCapacityRule())
	engine.Register(NewSlotOccupancyRule())
	engine.Register(NewBaselineLockRule())
	return engine
}
