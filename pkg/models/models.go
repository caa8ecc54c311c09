package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Kind identifies one of the four record collections.
type Kind string

const (
	KindThought    Kind = "thought"
	KindTask       Kind = "task"
	KindTaggedNote Kind = "tagged_note"
	KindInvestment Kind = "investment"
)

// Kinds returns all kinds in their canonical order. Migration pushes
// collections in this order.
func Kinds() []Kind {
	return []Kind{KindThought, KindTask, KindTaggedNote, KindInvestment}
}

func (k Kind) Valid() bool {
	switch k {
	case KindThought, KindTask, KindTaggedNote, KindInvestment:
		return true
	}
	return false
}

// Table returns the collection name used by both the local and remote stores.
func (k Kind) Table() string {
	switch k {
	case KindThought:
		return "thoughts"
	case KindTask:
		return "tasks"
	case KindTaggedNote:
		return "tagged_notes"
	case KindInvestment:
		return "investment_notes"
	}
	return string(k)
}

// ParseKind resolves a kind from its wire name, accepting both the enum value
// and the table name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if s == string(k) || s == k.Table() {
			return k, true
		}
	}
	return "", false
}

// Priority is a task's priority level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Tags is an ordered set of tag strings. Insertion order is preserved in
// storage but irrelevant for equality. Persisted as a JSON array; malformed
// persisted values scan to an empty set rather than failing the row.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal([]string(t))
}

func (t *Tags) Scan(value any) error {
	if value == nil {
		*t = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*t = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		// Malformed persisted data is dropped, not surfaced.
		*t = nil
		return nil
	}
	*t = out
	return nil
}

// Equal compares two tag sets ignoring order.
func (t Tags) Equal(other Tags) bool {
	if len(t) != len(other) {
		return false
	}
	seen := make(map[string]int, len(t))
	for _, tag := range t {
		seen[tag]++
	}
	for _, tag := range other {
		seen[tag]--
		if seen[tag] < 0 {
			return false
		}
	}
	return true
}

func (t Tags) Contains(tag string) bool {
	for _, have := range t {
		if have == tag {
			return true
		}
	}
	return false
}

// Note is the record shape shared by all four kinds. Which fields are
// meaningful depends on the kind: tags apply to thoughts, tagged notes and
// investment notes; completion, priority, due date and the calendar event ref
// apply to tasks only. A note lives in exactly one collection at a time; the
// Kind field is derived from the collection a note was read from and is not
// persisted as a column.
type Note struct {
	ID      NoteID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind    Kind   `gorm:"-" json:"kind,omitempty"`
	Content string `gorm:"type:text;not null" json:"content"`
	Tags    Tags   `gorm:"type:text" json:"tags,omitempty"`
	Completed bool `json:"completed"`
	// Priority defaults to medium for tasks at creation time.
	Priority Priority   `json:"priority,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	// CalendarEventRef points at the external calendar event mirroring the
	// task's due date. Present only after a best-effort calendar write
	// succeeded; its absence is always tolerated.
	CalendarEventRef string `json:"calendar_event_ref,omitempty"`
	// CreatedAt is set once at creation and never mutated afterwards, by any
	// operation. Conversion creates a new record with a fresh CreatedAt.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy. Tombstone capture and listener snapshots hand
// out copies so callers can't mutate store-owned state.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	out := *n
	if n.Tags != nil {
		out.Tags = append(Tags(nil), n.Tags...)
	}
	if n.DueDate != nil {
		due := *n.DueDate
		out.DueDate = &due
	}
	return &out
}
