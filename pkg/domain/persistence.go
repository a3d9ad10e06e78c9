package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateTent(Tent) (Tent, error)
	UpdateTent(id string, mutator func(*Tent) error) (Tent, error)
	DeleteTent(id string) error
	CreateSlot(Slot) (Slot, error)
	UpdateSlot(id string, mutator func(*Slot) error) (Slot, error)
	DeleteSlot(id string) error
	CreateTray(Tray) (Tray, error)
	UpdateTray(id string, mutator func(*Tray) error) (Tray, error)
	DeleteTray(id string) error
	CreatePlant(Plant) (Plant, error)
	UpdatePlant(id string, mutator func(*Plant) error) (Plant, error)
	DeletePlant(id string) error
	CreateRecipe(Recipe) (Recipe, error)
	UpdateRecipe(id string, mutator func(*Recipe) error) (Recipe, error)
	DeleteRecipe(id string) error
	CreateExperiment(Experiment) (Experiment, error)
	UpdateExperiment(id string, mutator func(*Experiment) error) (Experiment, error)
	DeleteExperiment(id string) error
	CreateBaseline(BaselineRecord) (BaselineRecord, error)
	UpdateBaseline(id string, mutator func(*BaselineRecord) error) (BaselineRecord, error)
	DeleteBaseline(id string) error
	CreateSchedule(Schedule) (Schedule, error)
	UpdateSchedule(id string, mutator func(*Schedule) error) (Schedule, error)
	DeleteSchedule(id string) error
	AppendRotation(RotationEvent) (RotationEvent, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// higher layers. It matches RuleView so a transaction snapshot can be handed
// to the rules engine directly.
type TransactionView interface {
	RuleView
	ListSchedules() []Schedule
	ListRotations() []RotationEvent
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTent(id string) (Tent, bool)
	ListTents() []Tent
	GetSlot(id string) (Slot, bool)
	ListSlots() []Slot
	GetTray(id string) (Tray, bool)
	ListTrays() []Tray
	GetPlant(id string) (Plant, bool)
	ListPlants() []Plant
	ListRecipes() []Recipe
	GetExperiment(id string) (Experiment, bool)
	ListExperiments() []Experiment
	ListBaselines() []BaselineRecord
	ListSchedules() []Schedule
	ListRotations() []RotationEvent
}
