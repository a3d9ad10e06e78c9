package draft

// Session is the explicit, serializable edit state of one assignment screen:
// the last server-confirmed values, the sparse draft overrides, the current
// selection, and the anchor used by discriminant selection. There are no
// ambient globals; every screen owns exactly one session.
type Session[V comparable] struct {
	Persisted map[string]V `json:"persisted"`
	Drafts    map[string]V `json:"drafts"`
	Selection Set          `json:"selection"`
	AnchorID  string       `json:"anchor_id,omitempty"`
}

// NewSession builds a session whose draft state mirrors the persisted
// snapshot, i.e. with no outstanding edits.
func NewSession[V comparable](persisted map[string]V) *Session[V] {
	return &Session[V]{
		Persisted: clone(persisted),
		Drafts:    ResetDrafts(persisted),
		Selection: Set{},
	}
}

// Resolve returns the effective value for entityID.
func (s *Session[V]) Resolve(entityID string, fallback V) V {
	return Resolve(s.Drafts, s.Persisted, entityID, fallback)
}

// IsDirty reports whether entityID carries an unsaved edit.
func (s *Session[V]) IsDirty(entityID string) bool {
	base := s.Persisted[entityID]
	return IsDirty(base, Resolve(s.Drafts, s.Persisted, entityID, base))
}

// Stage records value for a single entity.
func (s *Session[V]) Stage(entityID string, value V) {
	s.Drafts = StageBulk(s.Drafts, []string{entityID}, value)
}

// StageSelection stages value for every currently selected entity. Staging
// with an empty selection is a no-op rather than an error.
func (s *Session[V]) StageSelection(value V) {
	s.Drafts = StageBulk(s.Drafts, s.Selection.IDs(), value)
}

// Changeset computes the minimal dirty set over the provided universe.
func (s *Session[V]) Changeset(universe []string) Changeset[V] {
	return ComputeChangeset(s.Persisted, s.Drafts, universe)
}

// Discard resets the drafts back to the persisted snapshot, keeping the
// selection intact.
func (s *Session[V]) Discard() {
	s.Drafts = ResetDrafts(s.Persisted)
}

// ApplyServerSnapshot replaces both maps wholesale with the authoritative
// server state. Drafts are never partially preserved across a successful
// save (the save already consumed them), and background refreshes follow the
// same rule rather than merging into in-flight edits.
func (s *Session[V]) ApplyServerSnapshot(snapshot map[string]V) {
	s.Persisted = clone(snapshot)
	s.Drafts = ResetDrafts(snapshot)
}

func clone[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
