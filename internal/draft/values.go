// Package draft implements the draft/persisted reconciliation engine used by
// the bulk assignment screens: a sparse draft map layered over the last
// server-confirmed persisted map, value-equality dirty detection, and
// deterministic minimal changesets for submission.
package draft

// Ref is a nullable reference to another entity. The zero value is the null
// reference, meaning "unassigned": a first-class value distinct from the
// absence of a draft override.
type Ref struct {
	ID    string `json:"id,omitempty"`
	Valid bool   `json:"valid"`
}

// RefTo returns a reference to the given entity ID.
func RefTo(id string) Ref {
	return Ref{ID: id, Valid: true}
}

// NullRef returns the explicit "unassigned" value.
func NullRef() Ref {
	return Ref{}
}

// RefFromPtr converts the domain's pointer-style nullable reference.
func RefFromPtr(id *string) Ref {
	if id == nil {
		return NullRef()
	}
	return RefTo(*id)
}

// Ptr converts back to the domain's pointer-style nullable reference.
func (r Ref) Ptr() *string {
	if !r.Valid {
		return nil
	}
	id := r.ID
	return &id
}

// Set is a selection of entity IDs.
type Set map[string]struct{}

// NewSet builds a set from the given IDs.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in unspecified order.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
