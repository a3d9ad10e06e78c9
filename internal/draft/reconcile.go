package draft

import "sort"

// Entry is one (entity, value) pair of a changeset.
type Entry[V comparable] struct {
	EntityID string `json:"entity_id"`
	Value    V      `json:"value"`
}

// Changeset is the minimal list of dirty entities to submit, ordered by
// entity ID so repeated computations over the same state are reproducible.
type Changeset[V comparable] []Entry[V]

// Resolve returns the draft value when present, else the persisted value,
// else fallback. Pure and total.
func Resolve[V comparable](drafts, persisted map[string]V, entityID string, fallback V) V {
	if v, ok := drafts[entityID]; ok {
		return v
	}
	if v, ok := persisted[entityID]; ok {
		return v
	}
	return fallback
}

// IsDirty reports whether a resolved draft value differs from the persisted
// value. Equal values are clean, null vs null included.
func IsDirty[V comparable](persisted, resolved V) bool {
	return persisted != resolved
}

// StageBulk sets value for every ID in ids and returns a new draft map; the
// input map is never mutated so callers can rely on identity comparison to
// detect staged changes. Staging zero IDs returns the input unchanged.
func StageBulk[V comparable](drafts map[string]V, ids []string, value V) map[string]V {
	if len(ids) == 0 {
		return drafts
	}
	next := make(map[string]V, len(drafts)+len(ids))
	for k, v := range drafts {
		next[k] = v
	}
	for _, id := range ids {
		next[id] = value
	}
	return next
}

// ComputeChangeset walks the full universe of known entities and returns the
// dirty (entity, resolved value) pairs ordered by entity ID. The universe is
// walked rather than the draft keys because a draft entry may have been
// staged back to its persisted value without being pruned; value comparison,
// not key presence, decides dirtiness. Entities outside the universe are
// ignored even when staged.
func ComputeChangeset[V comparable](persisted, drafts map[string]V, universe []string) Changeset[V] {
	var out Changeset[V]
	seen := make(map[string]struct{}, len(universe))
	for _, id := range universe {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		base := persisted[id]
		resolved := Resolve(drafts, persisted, id, base)
		if IsDirty(base, resolved) {
			out = append(out, Entry[V]{EntityID: id, Value: resolved})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// ResetDrafts returns a draft map equal to the persisted map, discarding all
// outstanding edits.
func ResetDrafts[V comparable](persisted map[string]V) map[string]V {
	next := make(map[string]V, len(persisted))
	for k, v := range persisted {
		next[k] = v
	}
	return next
}
