package task

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/etudier/etudier/core"
)

type Task struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Deadline    *time.Time `json:"deadline" db:"deadline"` // UTC
	Labels      []string   `json:"labels" db:"labels"`
	Completed   bool       `json:"completed" db:"completed"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

// Overdue reports whether the task is still open past its deadline.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && t.Deadline != nil && t.Deadline.Before(now)
}

type NewTask struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=5000"`
	Deadline    *time.Time `json:"deadline"`
	Labels      []string   `json:"labels" validate:"max=20,dive,max=50"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Labels = cleanLabels(nt.Labels)
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// Nil fields are left untouched; ClearDeadline removes the deadline.
type UpdateTask struct {
	Title         *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description   *string    `json:"description" validate:"omitempty,max=5000"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
	Labels        []string   `json:"labels" validate:"omitempty,max=20,dive,max=50"`
	Completed     *bool      `json:"completed"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		title := core.CleanString(*ut.Title)
		ut.Title = &title
	}
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	if ut.Labels != nil {
		ut.Labels = cleanLabels(ut.Labels)
	}
	return validate.Struct(ut)
}

// ListFilter narrows the tasks of a user.
type ListFilter struct {
	Completed *bool
	OverdueAt *time.Time // open tasks whose deadline passed before this time
	Search    string
	Ordering  []core.DBOrdering
}

// Matches reports whether t is selected by the filter; used by in-memory repositories.
func (f ListFilter) Matches(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.OverdueAt != nil && !t.Overdue(*f.OverdueAt) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		return strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q)
	}
	return true
}

// cleanLabels trims, lowers and dedupes labels, keeping their order.
func cleanLabels(labels []string) []string {
	cleaned := core.CleanStrings(labels, true /* lower */)
	seen := make(map[string]struct{}, len(cleaned))
	uniq := cleaned[:0]
	for _, l := range cleaned {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		uniq = append(uniq, l)
	}
	return uniq
}
