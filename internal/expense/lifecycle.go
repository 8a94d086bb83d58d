package expense

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request rejected before any remote call was
	// made, such as submitting an empty draft.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced expense or report that is absent from
	// the local store.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition marks a report status change that the lifecycle
	// does not allow from the report's current status.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// checkSubmit validates that a report may be submitted. Only the draft
// report is submittable, and only when it holds at least one expense.
func checkSubmit(r *Report) error {
	if !r.IsDraft() || r.Status != StatusUnsubmitted {
		return fmt.Errorf("report %q is not the draft: %w", r.Name, ErrIllegalTransition)
	}
	if len(r.ExpenseIDs) == 0 {
		return fmt.Errorf("draft report has no expenses: %w", ErrValidation)
	}
	return nil
}

// checkRecall validates that a report may be recalled to Unsubmitted.
func checkRecall(r *Report) error {
	if r.Status != StatusUnderReview {
		return fmt.Errorf("cannot recall report in status %q: %w", r.Status, ErrIllegalTransition)
	}
	return nil
}

// checkReview validates that an admin may approve or reject a report.
func checkReview(r *Report) error {
	if r.Status != StatusUnderReview {
		return fmt.Errorf("cannot review report in status %q: %w", r.Status, ErrIllegalTransition)
	}
	return nil
}

// checkDelete validates that a report may be deleted. Approved reports are
// archived and immutable.
func checkDelete(r *Report) error {
	if r.Status == StatusApproved {
		return fmt.Errorf("cannot delete approved report: %w", ErrIllegalTransition)
	}
	return nil
}
