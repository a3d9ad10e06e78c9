// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Tent aliases domain.Tent for in-memory persistence operations.
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
	// BaselineRecord aliases domain.BaselineRecord.
	BaselineRecord = domain.BaselineRecord
	// Schedule aliases domain.Schedule.
	Schedule = domain.Schedule
	// RotationEvent aliases domain.RotationEvent.
	RotationEvent = domain.RotationEvent
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	tents       map[string]Tent
	slots       map[string]Slot
	trays       map[string]Tray
	plants      map[string]Plant
	recipes     map[string]Recipe
	experiments map[string]Experiment
	baselines   map[string]BaselineRecord
	schedules   map[string]Schedule
	rotations   map[string]RotationEvent
}

// Snapshot captures a point-in-time clone of the store state, serialized as
// JSON buckets by the durable backends.
type Snapshot struct {
	Tents       map[string]Tent           `json:"tents"`
	Slots       map[string]Slot           `json:"slots"`
	Trays       map[string]Tray           `json:"trays"`
	Plants      map[string]Plant          `json:"plants"`
	Recipes     map[string]Recipe         `json:"recipes"`
	Experiments map[string]Experiment     `json:"experiments"`
	Baselines   map[string]BaselineRecord `json:"baselines"`
	Schedules   map[string]Schedule       `json:"schedules"`
	Rotations   map[string]RotationEvent  `json:"rotations"`
}

func newMemoryState() memoryState {
	return memoryState{
		tents:       make(map[string]Tent),
		slots:       make(map[string]Slot),
		trays:       make(map[string]Tray),
		plants:      make(map[string]Plant),
		recipes:     make(map[string]Recipe),
		experiments: make(map[string]Experiment),
		baselines:   make(map[string]BaselineRecord),
		schedules:   make(map[string]Schedule),
		rotations:   make(map[string]RotationEvent),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.tents {
		cloned.tents[k] = v
	}
	for k, v := range s.slots {
		cloned.slots[k] = v
	}
	for k, v := range s.trays {
		cloned.trays[k] = cloneTray(v)
	}
	for k, v := range s.plants {
		cloned.plants[k] = clonePlant(v)
	}
	for k, v := range s.recipes {
		cloned.recipes[k] = cloneRecipe(v)
	}
	for k, v := range s.experiments {
		cloned.experiments[k] = cloneExperiment(v)
	}
	for k, v := range s.baselines {
		cloned.baselines[k] = cloneBaseline(v)
	}
	for k, v := range s.schedules {
		cloned.schedules[k] = v
	}
	for k, v := range s.rotations {
		cloned.rotations[k] = cloneRotation(v)
	}
	return cloned
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTray(t Tray) Tray {
	cp := t
	cp.SlotID = cloneStringPtr(t.SlotID)
	return cp
}

func clonePlant(p Plant) Plant {
	cp := p
	cp.RecipeID = cloneStringPtr(p.RecipeID)
	cp.TrayID = cloneStringPtr(p.TrayID)
	cp.Notes = cloneStringPtr(p.Notes)
	return cp
}

func cloneRecipe(r Recipe) Recipe {
	cp := r
	cp.Description = cloneStringPtr(r.Description)
	return cp
}

func cloneExperiment(e Experiment) Experiment {
	cp := e
	cp.Description = cloneStringPtr(e.Description)
	cp.LockedAt = cloneTimePtr(e.LockedAt)
	return cp
}

func cloneBaseline(b BaselineRecord) BaselineRecord {
	cp := b
	cp.CapturedAt = cloneTimePtr(b.CapturedAt)
	cp.PhotoKey = cloneStringPtr(b.PhotoKey)
	return cp
}

func cloneRotation(r RotationEvent) RotationEvent {
	cp := r
	cp.FromSlotID = cloneStringPtr(r.FromSlotID)
	cp.ToSlotID = cloneStringPtr(r.ToSlotID)
	cp.Notes = cloneStringPtr(r.Notes)
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

var _ Transaction = (*transaction)(nil)

type transactionView struct {
	state *memoryState
}

var _ TransactionView = transactionView{}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the mutated copy before commit; blocking
// violations abort the commit and none of the staged changes apply.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := transactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(transactionView{state: &snapshot})
}

// ExportState returns a deep snapshot of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state.clone()
	return Snapshot{
		Tents:       state.tents,
		Slots:       state.slots,
		Trays:       state.trays,
		Plants:      state.plants,
		Recipes:     state.recipes,
		Experiments: state.experiments,
		Baselines:   state.baselines,
		Schedules:   state.schedules,
		Rotations:   state.rotations,
	}
}

// ImportState replaces the committed state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Tents {
		state.tents[k] = v
	}
	for k, v := range snapshot.Slots {
		state.slots[k] = v
	}
	for k, v := range snapshot.Trays {
		state.trays[k] = cloneTray(v)
	}
	for k, v := range snapshot.Plants {
		state.plants[k] = clonePlant(v)
	}
	for k, v := range snapshot.Recipes {
		state.recipes[k] = cloneRecipe(v)
	}
	for k, v := range snapshot.Experiments {
		state.experiments[k] = cloneExperiment(v)
	}
	for k, v := range snapshot.Baselines {
		state.baselines[k] = cloneBaseline(v)
	}
	for k, v := range snapshot.Schedules {
		state.schedules[k] = v
	}
	for k, v := range snapshot.Rotations {
		state.rotations[k] = cloneRotation(v)
	}
	s.state = state
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state read-only.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

// CreateTent stores a new tent within the transaction.
func (tx *transaction) CreateTent(t Tent) (Tent, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.tents[t.ID]; exists {
		return Tent{}, fmt.Errorf("tent %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tents[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTent, Action: domain.ActionCreate, After: t})
	return t, nil
}

// UpdateTent mutates a tent using the provided mutator.
func (tx *transaction) UpdateTent(id string, mutator func(*Tent) error) (Tent, error) {
	current, ok := tx.state.tents[id]
	if !ok {
		return Tent{}, fmt.Errorf("tent %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Tent{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.tents[id] = current
	tx.recordChange(Change{Entity: domain.EntityTent, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteTent removes a tent from state.
func (tx *transaction) DeleteTent(id string) error {
	current, ok := tx.state.tents[id]
	if !ok {
		return fmt.Errorf("tent %q not found", id)
	}
	delete(tx.state.tents, id)
	tx.recordChange(Change{Entity: domain.EntityTent, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateSlot stores a new slot.
func (tx *transaction) CreateSlot(sl Slot) (Slot, error) {
	if sl.ID == "" {
		sl.ID = newID()
	}
	if _, exists := tx.state.slots[sl.ID]; exists {
		return Slot{}, fmt.Errorf("slot %q already exists", sl.ID)
	}
	if _, ok := tx.state.tents[sl.TentID]; !ok {
		return Slot{}, fmt.Errorf("slot tent %q not found", sl.TentID)
	}
	sl.CreatedAt = tx.now
	sl.UpdatedAt = tx.now
	tx.state.slots[sl.ID] = sl
	tx.recordChange(Change{Entity: domain.EntitySlot, Action: domain.ActionCreate, After: sl})
	return sl, nil
}

// UpdateSlot mutates an existing slot.
func (tx *transaction) UpdateSlot(id string, mutator func(*Slot) error) (Slot, error) {
	current, ok := tx.state.slots[id]
	if !ok {
		return Slot{}, fmt.Errorf("slot %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Slot{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.slots[id] = current
	tx.recordChange(Change{Entity: domain.EntitySlot, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteSlot removes a slot from state.
func (tx *transaction) DeleteSlot(id string) error {
	current, ok := tx.state.slots[id]
	if !ok {
		return fmt.Errorf("slot %q not found", id)
	}
	delete(tx.state.slots, id)
	tx.recordChange(Change{Entity: domain.EntitySlot, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateTray stores a new tray.
func (tx *transaction) CreateTray(t Tray) (Tray, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.trays[t.ID]; exists {
		return Tray{}, fmt.Errorf("tray %q already exists", t.ID)
	}
	if t.Capacity <= 0 {
		return Tray{}, errors.New("tray capacity must be positive")
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.trays[t.ID] = cloneTray(t)
	tx.recordChange(Change{Entity: domain.EntityTray, Action: domain.ActionCreate, After: cloneTray(t)})
	return cloneTray(t), nil
}

// UpdateTray mutates an existing tray.
func (tx *transaction) UpdateTray(id string, mutator func(*Tray) error) (Tray, error) {
	current, ok := tx.state.trays[id]
	if !ok {
		return Tray{}, fmt.Errorf("tray %q not found", id)
	}
	before := cloneTray(current)
	if err := mutator(&current); err != nil {
		return Tray{}, err
	}
	if current.Capacity <= 0 {
		return Tray{}, errors.New("tray capacity must be positive")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.trays[id] = cloneTray(current)
	tx.recordChange(Change{Entity: domain.EntityTray, Action: domain.ActionUpdate, Before: before, After: cloneTray(current)})
	return cloneTray(current), nil
}

// DeleteTray removes a tray from state.
func (tx *transaction) DeleteTray(id string) error {
	current, ok := tx.state.trays[id]
	if !ok {
		return fmt.Errorf("tray %q not found", id)
	}
	delete(tx.state.trays, id)
	tx.recordChange(Change{Entity: domain.EntityTray, Action: domain.ActionDelete, Before: cloneTray(current)})
	return nil
}

// CreatePlant stores a new plant.
func (tx *transaction) CreatePlant(p Plant) (Plant, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if _, exists := tx.state.plants[p.ID]; exists {
		return Plant{}, fmt.Errorf("plant %q already exists", p.ID)
	}
	if _, ok := tx.state.experiments[p.ExperimentID]; !ok {
		return Plant{}, fmt.Errorf("plant experiment %q not found", p.ExperimentID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.plants[p.ID] = clonePlant(p)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionCreate, After: clonePlant(p)})
	return clonePlant(p), nil
}

// UpdatePlant mutates a plant using the provided mutator function.
func (tx *transaction) UpdatePlant(id string, mutator func(*Plant) error) (Plant, error) {
	current, ok := tx.state.plants[id]
	if !ok {
		return Plant{}, fmt.Errorf("plant %q not found", id)
	}
	before := clonePlant(current)
	if err := mutator(&current); err != nil {
		return Plant{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.plants[id] = clonePlant(current)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionUpdate, Before: before, After: clonePlant(current)})
	return clonePlant(current), nil
}

// DeletePlant removes a plant from the transaction state.
func (tx *transaction) DeletePlant(id string) error {
	current, ok := tx.state.plants[id]
	if !ok {
		return fmt.Errorf("plant %q not found", id)
	}
	delete(tx.state.plants, id)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionDelete, Before: clonePlant(current)})
	return nil
}

// CreateRecipe stores a new recipe.
func (tx *transaction) CreateRecipe(r Recipe) (Recipe, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.recipes[r.ID]; exists {
		return Recipe{}, fmt.Errorf("recipe %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.recipes[r.ID] = cloneRecipe(r)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionCreate, After: cloneRecipe(r)})
	return cloneRecipe(r), nil
}

// UpdateRecipe mutates an existing recipe.
func (tx *transaction) UpdateRecipe(id string, mutator func(*Recipe) error) (Recipe, error) {
	current, ok := tx.state.recipes[id]
	if !ok {
		return Recipe{}, fmt.Errorf("recipe %q not found", id)
	}
	before := cloneRecipe(current)
	if err := mutator(&current); err != nil {
		return Recipe{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.recipes[id] = cloneRecipe(current)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionUpdate, Before: before, After: cloneRecipe(current)})
	return cloneRecipe(current), nil
}

// DeleteRecipe removes a recipe from state.
func (tx *transaction) DeleteRecipe(id string) error {
	current, ok := tx.state.recipes[id]
	if !ok {
		return fmt.Errorf("recipe %q not found", id)
	}
	delete(tx.state.recipes, id)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionDelete, Before: cloneRecipe(current)})
	return nil
}

// CreateExperiment stores a new experiment.
func (tx *transaction) CreateExperiment(e Experiment) (Experiment, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if _, exists := tx.state.experiments[e.ID]; exists {
		return Experiment{}, fmt.Errorf("experiment %q already exists", e.ID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.experiments[e.ID] = cloneExperiment(e)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionCreate, After: cloneExperiment(e)})
	return cloneExperiment(e), nil
}

// UpdateExperiment mutates an existing experiment.
func (tx *transaction) UpdateExperiment(id string, mutator func(*Experiment) error) (Experiment, error) {
	current, ok := tx.state.experiments[id]
	if !ok {
		return Experiment{}, fmt.Errorf("experiment %q not found", id)
	}
	before := cloneExperiment(current)
	if err := mutator(&current); err != nil {
		return Experiment{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.experiments[id] = cloneExperiment(current)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, Before: before, After: cloneExperiment(current)})
	return cloneExperiment(current), nil
}

// DeleteExperiment removes an experiment from state.
func (tx *transaction) DeleteExperiment(id string) error {
	current, ok := tx.state.experiments[id]
	if !ok {
		return fmt.Errorf("experiment %q not found", id)
	}
	delete(tx.state.experiments, id)
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionDelete, Before: cloneExperiment(current)})
	return nil
}

// CreateBaseline stores a new baseline record. At most one record exists per
// plant.
func (tx *transaction) CreateBaseline(b BaselineRecord) (BaselineRecord, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	if _, exists := tx.state.baselines[b.ID]; exists {
		return BaselineRecord{}, fmt.Errorf("baseline %q already exists", b.ID)
	}
	if _, ok := tx.state.plants[b.PlantID]; !ok {
		return BaselineRecord{}, fmt.Errorf("baseline plant %q not found", b.PlantID)
	}
	for _, existing := range tx.state.baselines {
		if existing.PlantID == b.PlantID {
			return BaselineRecord{}, fmt.Errorf("baseline for plant %q already exists", b.PlantID)
		}
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.baselines[b.ID] = cloneBaseline(b)
	tx.recordChange(Change{Entity: domain.EntityBaseline, Action: domain.ActionCreate, After: cloneBaseline(b)})
	return cloneBaseline(b), nil
}

// UpdateBaseline mutates an existing baseline record.
func (tx *transaction) UpdateBaseline(id string, mutator func(*BaselineRecord) error) (BaselineRecord, error) {
	current, ok := tx.state.baselines[id]
	if !ok {
		return BaselineRecord{}, fmt.Errorf("baseline %q not found", id)
	}
	before := cloneBaseline(current)
	if err := mutator(&current); err != nil {
		return BaselineRecord{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.baselines[id] = cloneBaseline(current)
	tx.recordChange(Change{Entity: domain.EntityBaseline, Action: domain.ActionUpdate, Before: before, After: cloneBaseline(current)})
	return cloneBaseline(current), nil
}

// DeleteBaseline removes a baseline record.
func (tx *transaction) DeleteBaseline(id string) error {
	current, ok := tx.state.baselines[id]
	if !ok {
		return fmt.Errorf("baseline %q not found", id)
	}
	delete(tx.state.baselines, id)
	tx.recordChange(Change{Entity: domain.EntityBaseline, Action: domain.ActionDelete, Before: cloneBaseline(current)})
	return nil
}

// CreateSchedule stores a new schedule.
func (tx *transaction) CreateSchedule(s Schedule) (Schedule, error) {
	if s.ID == "" {
		s.ID = newID()
	}
	if _, exists := tx.state.schedules[s.ID]; exists {
		return Schedule{}, fmt.Errorf("schedule %q already exists", s.ID)
	}
	if _, ok := tx.state.experiments[s.ExperimentID]; !ok {
		return Schedule{}, fmt.Errorf("schedule experiment %q not found", s.ExperimentID)
	}
	if s.IntervalDays <= 0 {
		return Schedule{}, errors.New("schedule interval must be positive")
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.schedules[s.ID] = s
	tx.recordChange(Change{Entity: domain.EntitySchedule, Action: domain.ActionCreate, After: s})
	return s, nil
}

// UpdateSchedule mutates an existing schedule.
func (tx *transaction) UpdateSchedule(id string, mutator func(*Schedule) error) (Schedule, error) {
	current, ok := tx.state.schedules[id]
	if !ok {
		return Schedule{}, fmt.Errorf("schedule %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Schedule{}, err
	}
	if current.IntervalDays <= 0 {
		return Schedule{}, errors.New("schedule interval must be positive")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.schedules[id] = current
	tx.recordChange(Change{Entity: domain.EntitySchedule, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteSchedule removes a schedule from state.
func (tx *transaction) DeleteSchedule(id string) error {
	current, ok := tx.state.schedules[id]
	if !ok {
		return fmt.Errorf("schedule %q not found", id)
	}
	delete(tx.state.schedules, id)
	tx.recordChange(Change{Entity: domain.EntitySchedule, Action: domain.ActionDelete, Before: current})
	return nil
}

// AppendRotation records a rotation log entry. Rotation history is
// append-only; there is no update or delete.
func (tx *transaction) AppendRotation(r RotationEvent) (RotationEvent, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := tx.state.rotations[r.ID]; exists {
		return RotationEvent{}, fmt.Errorf("rotation %q already exists", r.ID)
	}
	if _, ok := tx.state.trays[r.TrayID]; !ok {
		return RotationEvent{}, fmt.Errorf("rotation tray %q not found", r.TrayID)
	}
	if r.RotatedAt.IsZero() {
		r.RotatedAt = tx.now
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.rotations[r.ID] = cloneRotation(r)
	tx.recordChange(Change{Entity: domain.EntityRotation, Action: domain.ActionCreate, After: cloneRotation(r)})
	return cloneRotation(r), nil
}

// Read-only view methods -----------------------------------------------------

func (v transactionView) ListTents() []Tent {
	out := make([]Tent, 0, len(v.state.tents))
	for _, t := range v.state.tents {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListSlots() []Slot {
	out := make([]Slot, 0, len(v.state.slots))
	for _, s := range v.state.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListTrays() []Tray {
	out := make([]Tray, 0, len(v.state.trays))
	for _, t := range v.state.trays {
		out = append(out, cloneTray(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListPlants() []Plant {
	out := make([]Plant, 0, len(v.state.plants))
	for _, p := range v.state.plants {
		out = append(out, clonePlant(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListRecipes() []Recipe {
	out := make([]Recipe, 0, len(v.state.recipes))
	for _, r := range v.state.recipes {
		out = append(out, cloneRecipe(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListExperiments() []Experiment {
	out := make([]Experiment, 0, len(v.state.experiments))
	for _, e := range v.state.experiments {
		out = append(out, cloneExperiment(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListBaselines() []BaselineRecord {
	out := make([]BaselineRecord, 0, len(v.state.baselines))
	for _, b := range v.state.baselines {
		out = append(out, cloneBaseline(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListSchedules() []Schedule {
	out := make([]Schedule, 0, len(v.state.schedules))
	for _, s := range v.state.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListRotations() []RotationEvent {
	out := make([]RotationEvent, 0, len(v.state.rotations))
	for _, r := range v.state.rotations {
		out = append(out, cloneRotation(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RotatedAt.Equal(out[j].RotatedAt) {
			return out[i].RotatedAt.Before(out[j].RotatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindTent(id string) (Tent, bool) {
	t, ok := v.state.tents[id]
	return t, ok
}

func (v transactionView) FindSlot(id string) (Slot, bool) {
	s, ok := v.state.slots[id]
	return s, ok
}

func (v transactionView) FindTray(id string) (Tray, bool) {
	t, ok := v.state.trays[id]
	if !ok {
		return Tray{}, false
	}
	return cloneTray(t), true
}

func (v transactionView) FindPlant(id string) (Plant, bool) {
	p, ok := v.state.plants[id]
	if !ok {
		return Plant{}, false
	}
	return clonePlant(p), true
}

func (v transactionView) FindRecipe(id string) (Recipe, bool) {
	r, ok := v.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return cloneRecipe(r), true
}

func (v transactionView) FindExperiment(id string) (Experiment, bool) {
	e, ok := v.state.experiments[id]
	if !ok {
		return Experiment{}, false
	}
	return cloneExperiment(e), true
}

func (v transactionView) FindBaselineByPlant(plantID string) (BaselineRecord, bool) {
	for _, b := range v.state.baselines {
		if b.PlantID == plantID {
			return cloneBaseline(b), true
		}
	}
	return BaselineRecord{}, false
}

// Committed-state read helpers -----------------------------------------------

// GetTent retrieves a tent by ID from committed state.
func (s *Store) GetTent(id string) (Tent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tents[id]
	return t, ok
}

// ListTents returns all tents from committed state.
func (s *Store) ListTents() []Tent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListTents()
}

// GetSlot retrieves a slot by ID.
func (s *Store) GetSlot(id string) (Slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.state.slots[id]
	return sl, ok
}

// ListSlots returns all slots.
func (s *Store) ListSlots() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListSlots()
}

// GetTray retrieves a tray by ID.
func (s *Store) GetTray(id string) (Tray, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.trays[id]
	if !ok {
		return Tray{}, false
	}
	return cloneTray(t), true
}

// ListTrays returns all trays.
func (s *Store) ListTrays() []Tray {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListTrays()
}

// GetPlant retrieves a plant by ID from committed state.
func (s *Store) GetPlant(id string) (Plant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.plants[id]
	if !ok {
		return Plant{}, false
	}
	return clonePlant(p), true
}

// ListPlants returns all plants from committed state.
func (s *Store) ListPlants() []Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListPlants()
}

// ListRecipes returns all recipes.
func (s *Store) ListRecipes() []Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListRecipes()
}

// GetExperiment retrieves an experiment by ID.
func (s *Store) GetExperiment(id string) (Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.experiments[id]
	if !ok {
		return Experiment{}, false
	}
	return cloneExperiment(e), true
}

// ListExperiments returns all experiments.
func (s *Store) ListExperiments() []Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListExperiments()
}

// ListBaselines returns all baseline records.
func (s *Store) ListBaselines() []BaselineRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListBaselines()
}

// ListSchedules returns all schedules.
func (s *Store) ListSchedules() []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListSchedules()
}

// ListRotations returns the rotation log ordered by rotation time.
func (s *Store) ListRotations() []RotationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListRotations()
}
