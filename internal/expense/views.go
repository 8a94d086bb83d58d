package expense

import (
	"fmt"
	"sort"
)

// Expenses returns a snapshot of all expenses, oldest first.
func (e *Engine) Expenses() []*Expense {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Expense, 0, len(e.expenses))
	for _, exp := range e.expenses {
		copied := *exp
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Expense returns a snapshot of one expense.
func (e *Engine) Expense(id string) (*Expense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, ok := e.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	copied := *exp
	return &copied, nil
}

// Reports returns a snapshot of all reports, oldest first.
func (e *Engine) Reports() []*Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reportsLocked(func(*Report) bool { return true })
}

// Report returns a snapshot of one report.
func (e *Engine) Report(id string) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	copied := *r
	copied.ExpenseIDs = append([]string(nil), r.ExpenseIDs...)
	return &copied, nil
}

// Draft returns a snapshot of the draft report, or nil when no expense
// has been attached yet.
func (e *Engine) Draft() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	draft := e.draftLocked()
	if draft == nil {
		return nil
	}
	copied := *draft
	copied.ExpenseIDs = append([]string(nil), draft.ExpenseIDs...)
	return &copied
}

// PendingReports returns submitted reports still awaiting review.
func (e *Engine) PendingReports() []*Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reportsLocked(func(r *Report) bool {
		return !r.IsDraft() && r.Status == StatusUnderReview
	})
}

// ApprovedReports returns the archived set.
func (e *Engine) ApprovedReports() []*Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reportsLocked(func(r *Report) bool {
		return !r.IsDraft() && r.Status == StatusApproved
	})
}

// RejectedReports returns reports returned to the user for rework.
func (e *Engine) RejectedReports() []*Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reportsLocked(func(r *Report) bool {
		return !r.IsDraft() && r.Status == StatusRejected
	})
}

// UnattachedExpenses returns expenses not held by any submitted,
// approved, or rejected report: the set the home screen shows.
func (e *Engine) UnattachedExpenses() []*Expense {
	e.mu.Lock()
	taken := make(map[string]bool)
	for _, r := range e.reports {
		if r.IsDraft() {
			continue
		}
		for _, id := range r.ExpenseIDs {
			taken[id] = true
		}
	}
	e.mu.Unlock()

	all := e.Expenses()
	out := make([]*Expense, 0, len(all))
	for _, exp := range all {
		if !taken[exp.ID] {
			out = append(out, exp)
		}
	}
	return out
}

func (e *Engine) reportsLocked(keep func(*Report) bool) []*Report {
	out := make([]*Report, 0, len(e.reports))
	for _, r := range e.reports {
		if !keep(r) {
			continue
		}
		copied := *r
		copied.ExpenseIDs = append([]string(nil), r.ExpenseIDs...)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetMapping stores the account code for a category, overwriting any
// previous code.
func (e *Engine) SetMapping(category, accountCode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.SaveCategoryMapping(&CategoryMapping{Category: category, AccountCode: accountCode}); err != nil {
		return fmt.Errorf("saving category mapping: %w", err)
	}
	e.mappings[category] = accountCode
	e.notify(EventMappingsChanged, category)
	return nil
}

// RenameMapping moves a mapping to a new category name.
func (e *Engine) RenameMapping(oldCategory, newCategory, accountCode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.mappings[oldCategory]; ok {
		if err := e.db.DeleteCategoryMapping(oldCategory); err != nil {
			return fmt.Errorf("deleting category mapping: %w", err)
		}
		delete(e.mappings, oldCategory)
	}
	if err := e.db.SaveCategoryMapping(&CategoryMapping{Category: newCategory, AccountCode: accountCode}); err != nil {
		return fmt.Errorf("saving category mapping: %w", err)
	}
	e.mappings[newCategory] = accountCode
	e.notify(EventMappingsChanged, newCategory)
	return nil
}

// RemoveMapping deletes the mapping for a category. Removing an unknown
// category is a no-op.
func (e *Engine) RemoveMapping(category string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.DeleteCategoryMapping(category); err != nil {
		return fmt.Errorf("deleting category mapping: %w", err)
	}
	delete(e.mappings, category)
	e.notify(EventMappingsChanged, category)
	return nil
}

// Mappings returns a copy of the category to account-code table.
func (e *Engine) Mappings() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.mappings))
	for k, v := range e.mappings {
		out[k] = v
	}
	return out
}
