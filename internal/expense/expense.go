package expense

import "time"

// DraftReportName is the reserved name of the user's unsubmitted draft
// report. Exactly one report carries it at any time.
const DraftReportName = "current"

// Status is the lifecycle state of a report.
type Status string

const (
	StatusUnsubmitted Status = "Unsubmitted"
	StatusUnderReview Status = "Under Review"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
)

// Expense represents a single captured receipt with its metadata
type Expense struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Comment     string    `json:"comment"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"` // Amount in cents
	Date        time.Time `json:"date"`
	ImagePath   string    `json:"image_path,omitempty"` // Receipt image owned by this expense
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Report groups expenses for submission and approval
type Report struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"` // Server-assigned report number, or "current" for the draft
	ExpenseIDs []string  `json:"expense_ids"`
	Status     Status    `json:"status"`
	UserID     string    `json:"user_id,omitempty"`
	UserName   string    `json:"user_name"`
	Comment    string    `json:"comment"` // Admin feedback on rejection
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsDraft reports whether this is the user's unsubmitted draft report.
func (r *Report) IsDraft() bool {
	return r.Name == DraftReportName
}

// HasExpense reports whether the given expense id belongs to this report.
func (r *Report) HasExpense(id string) bool {
	for _, e := range r.ExpenseIDs {
		if e == id {
			return true
		}
	}
	return false
}

// CategoryMapping maps an expense category to an accounting code for CSV
// export. The category is the primary key.
type CategoryMapping struct {
	Category    string `json:"category"`
	AccountCode string `json:"account_code"`
}
