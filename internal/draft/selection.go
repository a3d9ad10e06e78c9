package draft

// Member is one entity of the currently visible universe together with the
// discriminant used for anchor-based selection (species, recipe, ...).
// Selection helpers only ever see the visible list, so they cannot select
// entities outside the loaded universe.
type Member struct {
	ID  string
	Key string
}

// SelectAll returns a selection covering every visible member.
func SelectAll(visible []Member) Set {
	out := make(Set, len(visible))
	for _, m := range visible {
		out[m.ID] = struct{}{}
	}
	return out
}

// SelectMatchingAnchor returns the members sharing the anchor's discriminant
// key, anchor included. An unknown anchor selects nothing.
func SelectMatchingAnchor(visible []Member, anchorID string) Set {
	var anchor *Member
	for i := range visible {
		if visible[i].ID == anchorID {
			anchor = &visible[i]
			break
		}
	}
	if anchor == nil {
		return Set{}
	}
	out := Set{}
	for _, m := range visible {
		if m.Key == anchor.Key {
			out[m.ID] = struct{}{}
		}
	}
	return out
}

// ToggleContainer selects every listed container member unless all of them
// are already selected, in which case it deselects them. Used for tray-level
// and slot-level one-click bulk selection. The input set is not mutated.
func ToggleContainer(selection Set, memberIDs []string) Set {
	out := selection.clone()
	if len(memberIDs) == 0 {
		return out
	}
	all := true
	for _, id := range memberIDs {
		if !out.Has(id) {
			all = false
			break
		}
	}
	for _, id := range memberIDs {
		if all {
			delete(out, id)
		} else {
			out[id] = struct{}{}
		}
	}
	return out
}
