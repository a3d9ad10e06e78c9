// Package layout rebuilds the tent → shelf → slot → tray display tree from
// the flat entity lists returned by the store. Slot and shelf indices are
// operator-entered and untrusted: they can be missing, duplicated, or out of
// order, and the grouping must still produce a stable, gap-aware grid
// without losing or duplicating a single plant.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

// MaxColumns caps the uniform per-tent grid width.
const MaxColumns = 12

// Tree is the fully grouped placement view for one experiment.
type Tree struct {
	Tents    []TentGroup `json:"tents"`
	Unplaced Unplaced    `json:"unplaced"`
}

// Unplaced collects trays without a slot and plants without a resolvable
// tray. Nothing is silently dropped: every plant of the input appears either
// in the placed tree, inside an unplaced tray, or here as a loose plant.
type Unplaced struct {
	Trays  []TrayGroup    `json:"trays"`
	Plants []domain.Plant `json:"plants"`
}

// TentGroup is one tent with its shelves rendered as a uniform grid.
type TentGroup struct {
	Tent       domain.Tent  `json:"tent"`
	Shelves    []ShelfGroup `json:"shelves"`
	Columns    int          `json:"columns"`
	TrayCount  int          `json:"tray_count"`
	PlantCount int          `json:"plant_count"`
}

// ShelfGroup is one shelf row. Cells always has at least Columns entries so
// consumers render a placeholder for every index from 1 to Columns, not just
// the present ones.
type ShelfGroup struct {
	Index int    `json:"index"`
	Cells []Cell `json:"cells"`
}

// Cell is one grid position; Slot is nil for an empty placeholder.
type Cell struct {
	Index int        `json:"index"`
	Slot  *SlotGroup `json:"slot,omitempty"`
}

// SlotGroup is an occupied-or-known slot with its trays. DisplayIndex is the
// de-duplicated render position; the raw domain index stays on the Slot and
// is display-only.
type SlotGroup struct {
	Slot         domain.Slot `json:"slot"`
	DisplayIndex int         `json:"display_index"`
	Trays        []TrayGroup `json:"trays"`
}

// TrayGroup is one tray with its plants in deterministic order. Number is a
// best-effort parse of the tray label for display and never participates in
// ordering.
type TrayGroup struct {
	Tray   domain.Tray    `json:"tray"`
	Number int            `json:"number,omitempty"`
	Plants []domain.Plant `json:"plants"`
}

// BuildTree groups the flat lists into the display tree. Grouping keys are
// entity IDs, never display labels, so same-named entities cannot collide.
func BuildTree(tents []domain.Tent, slots []domain.Slot, trays []domain.Tray, plants []domain.Plant) Tree {
	tentByID := make(map[string]domain.Tent, len(tents))
	for _, t := range tents {
		tentByID[t.ID] = t
	}
	slotByID := make(map[string]domain.Slot, len(slots))
	for _, s := range slots {
		slotByID[s.ID] = s
	}
	trayByID := make(map[string]domain.Tray, len(trays))
	for _, t := range trays {
		trayByID[t.ID] = t
	}

	plantsByTray := make(map[string][]domain.Plant)
	var loose []domain.Plant
	for _, p := range plants {
		if p.TrayID == nil {
			loose = append(loose, p)
			continue
		}
		if _, ok := trayByID[*p.TrayID]; !ok {
			// Dangling tray reference; the plant is unplaced, not lost.
			loose = append(loose, p)
			continue
		}
		plantsByTray[*p.TrayID] = append(plantsByTray[*p.TrayID], p)
	}
	sortPlants(loose)

	traysBySlot := make(map[string][]TrayGroup)
	var unplacedTrays []TrayGroup
	for _, tr := range trays {
		group := newTrayGroup(tr, plantsByTray[tr.ID])
		placed := false
		if tr.SlotID != nil {
			if sl, ok := slotByID[*tr.SlotID]; ok {
				if _, ok := tentByID[sl.TentID]; ok {
					traysBySlot[sl.ID] = append(traysBySlot[sl.ID], group)
					placed = true
				}
			}
		}
		if !placed {
			unplacedTrays = append(unplacedTrays, group)
		}
	}
	sortTrayGroups(unplacedTrays)

	slotsByTent := make(map[string][]domain.Slot)
	for _, sl := range slots {
		if _, ok := tentByID[sl.TentID]; !ok {
			continue
		}
		slotsByTent[sl.TentID] = append(slotsByTent[sl.TentID], sl)
	}

	out := Tree{Unplaced: Unplaced{Trays: unplacedTrays, Plants: loose}}
	for _, tent := range tents {
		out.Tents = append(out.Tents, buildTent(tent, slotsByTent[tent.ID], traysBySlot))
	}
	sort.Slice(out.Tents, func(i, j int) bool {
		a, b := out.Tents[i].Tent, out.Tents[j].Tent
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
	return out
}

func buildTent(tent domain.Tent, slots []domain.Slot, traysBySlot map[string][]TrayGroup) TentGroup {
	byShelf := make(map[int][]domain.Slot)
	for _, sl := range slots {
		byShelf[sl.ShelfIndex] = append(byShelf[sl.ShelfIndex], sl)
	}

	shelfKeys := make([]int, 0, len(byShelf))
	for k := range byShelf {
		shelfKeys = append(shelfKeys, k)
	}
	// Well-indexed shelves ascending first; missing or non-positive indices
	// sort last, never as zero.
	sort.Slice(shelfKeys, func(i, j int) bool {
		a, b := shelfSortKey(shelfKeys[i]), shelfSortKey(shelfKeys[j])
		if a != b {
			return a < b
		}
		return shelfKeys[i] < shelfKeys[j]
	})

	group := TentGroup{Tent: tent}
	maxIndex := 0
	shelves := make([][]SlotGroup, 0, len(shelfKeys))
	for _, key := range shelfKeys {
		assigned := assignDisplayIndices(byShelf[key], traysBySlot)
		for _, sg := range assigned {
			if sg.DisplayIndex > maxIndex {
				maxIndex = sg.DisplayIndex
			}
		}
		shelves = append(shelves, assigned)
	}

	columns := maxIndex
	if columns < 1 {
		columns = 1
	}
	if columns > MaxColumns {
		columns = MaxColumns
	}
	group.Columns = columns

	for i, key := range shelfKeys {
		group.Shelves = append(group.Shelves, buildShelf(key, shelves[i], columns))
	}

	// Aggregates fold over the tree that is actually rendered, so displayed
	// totals always match it.
	for _, shelf := range group.Shelves {
		for _, cell := range shelf.Cells {
			if cell.Slot == nil {
				continue
			}
			group.TrayCount += len(cell.Slot.Trays)
			for _, tg := range cell.Slot.Trays {
				group.PlantCount += len(tg.Plants)
			}
		}
	}
	return group
}

// assignDisplayIndices sorts a shelf's slots by raw index (missing last) and
// resolves collisions: a valid, unclaimed raw index is kept; anything else is
// reassigned to the lowest unused index starting at 1.
func assignDisplayIndices(slots []domain.Slot, traysBySlot map[string][]TrayGroup) []SlotGroup {
	ordered := append([]domain.Slot(nil), slots...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := slotSortKey(ordered[i].SlotIndex), slotSortKey(ordered[j].SlotIndex)
		if a != b {
			return a < b
		}
		return ordered[i].ID < ordered[j].ID
	})

	used := make(map[int]bool, len(ordered))
	out := make([]SlotGroup, 0, len(ordered))
	for _, sl := range ordered {
		idx := sl.SlotIndex
		if idx <= 0 || used[idx] {
			idx = 1
			for used[idx] {
				idx++
			}
		}
		used[idx] = true
		trays := append([]TrayGroup(nil), traysBySlot[sl.ID]...)
		sortTrayGroups(trays)
		out = append(out, SlotGroup{Slot: sl, DisplayIndex: idx, Trays: trays})
	}
	return out
}

func buildShelf(index int, slots []SlotGroup, columns int) ShelfGroup {
	shelf := ShelfGroup{Index: index}
	byIndex := make(map[int]*SlotGroup, len(slots))
	var overflow []SlotGroup
	for i := range slots {
		if slots[i].DisplayIndex <= columns {
			byIndex[slots[i].DisplayIndex] = &slots[i]
		} else {
			overflow = append(overflow, slots[i])
		}
	}
	for i := 1; i <= columns; i++ {
		shelf.Cells = append(shelf.Cells, Cell{Index: i, Slot: byIndex[i]})
	}
	// Slots whose display index exceeds the capped grid are appended rather
	// than dropped.
	for i := range overflow {
		shelf.Cells = append(shelf.Cells, Cell{Index: overflow[i].DisplayIndex, Slot: &overflow[i]})
	}
	return shelf
}

func newTrayGroup(tray domain.Tray, plants []domain.Plant) TrayGroup {
	ordered := append([]domain.Plant(nil), plants...)
	sortPlants(ordered)
	num, _ := TrayNumber(tray.Label)
	return TrayGroup{Tray: tray, Number: num, Plants: ordered}
}

func sortPlants(plants []domain.Plant) {
	sort.Slice(plants, func(i, j int) bool {
		a, b := plantSortKey(plants[i]), plantSortKey(plants[j])
		if a != b {
			return a < b
		}
		return plants[i].ID < plants[j].ID
	})
}

func plantSortKey(p domain.Plant) string {
	if p.Code != "" {
		return strings.ToLower(p.Code)
	}
	return p.ID
}

func sortTrayGroups(groups []TrayGroup) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := strings.ToLower(groups[i].Tray.Label), strings.ToLower(groups[j].Tray.Label)
		if a != b {
			return a < b
		}
		return groups[i].Tray.ID < groups[j].Tray.ID
	})
}

func shelfSortKey(idx int) int {
	if idx <= 0 {
		return math.MaxInt
	}
	return idx
}

func slotSortKey(idx int) int {
	if idx <= 0 {
		return math.MaxInt
	}
	return idx
}
