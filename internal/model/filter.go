package model

// FilterDimension names one filter in the filter bar.
type FilterDimension string

const (
	FilterPriority FilterDimension = "priority"
	FilterType     FilterDimension = "type"
	FilterAssignee FilterDimension = "assigneeId"
	FilterCategory FilterDimension = "category"
)

// FilterDimensions lists the dimensions in filter bar order.
var FilterDimensions = []FilterDimension{FilterPriority, FilterType, FilterAssignee, FilterCategory}

// FilterSet holds the selected value per dimension; "" means no filter.
// Filters are local to one client and never written anywhere.
type FilterSet struct {
	Priority   string
	Type       string
	AssigneeID string
	Category   string
}

// Active reports whether any dimension is set.
func (f FilterSet) Active() bool {
	return f.Priority != "" || f.Type != "" || f.AssigneeID != "" || f.Category != ""
}

// Get returns the selected value for d.
func (f FilterSet) Get(d FilterDimension) string {
	switch d {
	case FilterPriority:
		return f.Priority
	case FilterType:
		return f.Type
	case FilterAssignee:
		return f.AssigneeID
	case FilterCategory:
		return f.Category
	}
	return ""
}

// With returns a copy of f with d set to value.
func (f FilterSet) With(d FilterDimension, value string) FilterSet {
	switch d {
	case FilterPriority:
		f.Priority = value
	case FilterType:
		f.Type = value
	case FilterAssignee:
		f.AssigneeID = value
	case FilterCategory:
		f.Category = value
	}
	return f
}

// Matches reports whether t passes every non-empty dimension.
func (f FilterSet) Matches(t Task) bool {
	if f.Priority != "" && string(t.Priority) != f.Priority {
		return false
	}
	if f.Type != "" && string(t.Type) != f.Type {
		return false
	}
	if f.AssigneeID != "" && t.Assignee() != f.AssigneeID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}
