package workflows

import (
	"sort"
)

// SelectFindings picks at most perSpecialist findings from each completed
// slot, most severe first. Ties keep the order the specialist emitted them.
// Specialists are visited in roster order so the result is deterministic.
func SelectFindings(roster []string, slots map[string]*SpecialistSlot, perSpecialist int) []Finding {
	var out []Finding
	for _, name := range roster {
		slot, ok := slots[name]
		if !ok || slot.Status != SlotComplete || len(slot.Findings) == 0 {
			continue
		}
		ranked := append([]Finding(nil), slot.Findings...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Severity.Rank() < ranked[j].Severity.Rank()
		})
		if len(ranked) > perSpecialist {
			ranked = ranked[:perSpecialist]
		}
		out = append(out, ranked...)
	}
	return out
}

// AllFindings returns every finding from completed slots in roster order.
func AllFindings(roster []string, slots map[string]*SpecialistSlot) []Finding {
	var out []Finding
	for _, name := range roster {
		if slot, ok := slots[name]; ok && slot.Status == SlotComplete {
			out = append(out, slot.Findings...)
		}
	}
	return out
}
