package model

import (
	"errors"
	"math"
	"strings"
)

// Status is the kanban column a task sits in.
type Status string

// Column ids. Any other status value belongs to no column.
const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Columns lists the board columns in display order.
var Columns = []Status{StatusBacklog, StatusTodo, StatusInProgress, StatusDone}

// Known reports whether s is one of the four board columns.
func (s Status) Known() bool {
	for _, c := range Columns {
		if s == c {
			return true
		}
	}
	return false
}

// Label returns the column header text.
func (s Status) Label() string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// Priority is the task urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists priorities from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Label returns the display label for the priority.
func (p Priority) Label() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return string(p)
	}
}

// TaskType says which side of the stack a task touches.
type TaskType string

const (
	TypeFE   TaskType = "FE"
	TypeBE   TaskType = "BE"
	TypeBoth TaskType = "BOTH"
)

// Types lists the task types in display order.
var Types = []TaskType{TypeFE, TypeBE, TypeBoth}

// Label returns the badge text for the type.
func (t TaskType) Label() string {
	if t == TypeBoth {
		return "BE+FE"
	}
	return string(t)
}

// Document field names shared by every gateway backend.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldType        = "type"
	FieldPriority    = "priority"
	FieldCategory    = "category"
	FieldAssigneeID  = "assigneeId"
	FieldStatus      = "status"
	FieldOrder       = "order"
)

// DefaultCategory is used by the create form when the user leaves it unchanged.
const DefaultCategory = "general"

// ErrEmptyTitle is returned when a task would be saved without a title.
var ErrEmptyTitle = errors.New("task title must not be empty")

// Task is one card on the board.
type Task struct {
	// ID is assigned by the backing store and never changes.
	ID string `json:"id"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        TaskType `json:"type"`
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`

	// AssigneeID references a User; nil means unassigned.
	AssigneeID *string `json:"assigneeId"`

	// Status is the column id.
	Status Status `json:"status"`

	// Order is the secondary sort key. It is not contiguous.
	Order float64 `json:"order"`
}

// Assignee returns the assignee id, or "" when unassigned.
func (t Task) Assignee() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}

// Fields returns the full document representation of t, without its id.
func (t Task) Fields() map[string]any {
	var assignee any
	if t.AssigneeID != nil {
		assignee = *t.AssigneeID
	}
	return map[string]any{
		FieldTitle:       t.Title,
		FieldDescription: t.Description,
		FieldType:        string(t.Type),
		FieldPriority:    string(t.Priority),
		FieldCategory:    t.Category,
		FieldAssigneeID:  assignee,
		FieldStatus:      string(t.Status),
		FieldOrder:       t.Order,
	}
}

// Validate checks the fields a store write depends on.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// TaskFromDocument decodes a stored document. Missing or mistyped fields fall
// back to zero values: an empty priority sorts last, a missing order is 0, and
// a missing assignee means unassigned.
func TaskFromDocument(id string, data map[string]any) Task {
	t := Task{
		ID:          id,
		Title:       stringField(data, FieldTitle),
		Description: stringField(data, FieldDescription),
		Type:        TaskType(stringField(data, FieldType)),
		Priority:    Priority(stringField(data, FieldPriority)),
		Category:    stringField(data, FieldCategory),
		Status:      Status(stringField(data, FieldStatus)),
		Order:       numberField(data, FieldOrder),
	}
	if a := stringField(data, FieldAssigneeID); a != "" {
		t.AssigneeID = &a
	}
	return t
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status

	// AssigneeID is applied when SetAssignee is true; a nil value unassigns.
	AssigneeID  *string
	SetAssignee bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && !p.SetAssignee
}

// Validate rejects patches that would blank the title.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Fields returns the document fields the patch sets.
func (p TaskPatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Title != nil {
		fields[FieldTitle] = *p.Title
	}
	if p.Description != nil {
		fields[FieldDescription] = *p.Description
	}
	if p.Priority != nil {
		fields[FieldPriority] = string(*p.Priority)
	}
	if p.Status != nil {
		fields[FieldStatus] = string(*p.Status)
	}
	if p.SetAssignee {
		if p.AssigneeID == nil || *p.AssigneeID == "" {
			fields[FieldAssigneeID] = nil
		} else {
			fields[FieldAssigneeID] = *p.AssigneeID
		}
	}
	return fields
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.SetAssignee {
		if p.AssigneeID == nil || *p.AssigneeID == "" {
			t.AssigneeID = nil
		} else {
			a := *p.AssigneeID
			t.AssigneeID = &a
		}
	}
	return t
}

// StatusPatch builds the patch a column move writes.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func numberField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		if math.IsNaN(v) {
			return 0
		}
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return 0
	}
}
