package board

import (
	"sort"

	"github.com/nhle/kanban/internal/model"
)

// UnknownPriorityRank places unrecognised priorities after every known one.
const UnknownPriorityRank = 99

// PriorityRank maps a priority to its sort rank; lower sorts first.
func PriorityRank(p model.Priority) int {
	switch p {
	case model.PriorityCritical:
		return 0
	case model.PriorityHigh:
		return 1
	case model.PriorityMedium:
		return 2
	case model.PriorityLow:
		return 3
	default:
		return UnknownPriorityRank
	}
}

// ColumnTasks returns the tasks visible in column under filters, sorted by
// priority rank and then by order. Ties keep their input order.
func ColumnTasks(tasks []model.Task, filters model.FilterSet, column model.Status) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Status == column && filters.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := PriorityRank(out[i].Priority), PriorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// Categories returns the distinct non-empty categories across all tasks,
// sorted alphabetically.
func Categories(tasks []model.Task) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tasks {
		if t.Category == "" {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}
