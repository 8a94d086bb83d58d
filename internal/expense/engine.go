package expense

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pineapple-expense/expense-engine/internal/api"
)

// Remote is the slice of the backend the engine drives. *api.Client
// satisfies it.
type Remote interface {
	CreateReport(ctx context.Context, reportNumber string) error
	AttachReceipt(ctx context.Context, receiptID string) error
	UpdateReceipt(ctx context.Context, receiptID, amount, date, category, title, comment string) error
	SubmitReport(ctx context.Context, reportNumber string) error
	RecallReport(ctx context.Context, reportNumber string) error
	DeleteReport(ctx context.Context, reportNumber string) error
	ReturnedReports(ctx context.Context) ([]api.RemoteReport, error)
	ApprovedReports(ctx context.Context) ([]api.RemoteReport, error)
	SubmittedReports(ctx context.Context) ([]api.RemoteReport, error)
	ReportExpenses(ctx context.Context, reportNumber string) ([]api.RemoteExpense, error)
	ApproveReport(ctx context.Context, userID, reportNumber, comment string) error
	ReturnReport(ctx context.Context, userID, reportNumber, comment string) error
}

// IDGenerator generates unique IDs for expenses and reports
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// EventKind classifies an engine change notification.
type EventKind string

const (
	EventExpensesChanged EventKind = "expenses"
	EventReportsChanged  EventKind = "reports"
	EventMappingsChanged EventKind = "mappings"
)

// Event is a change notification delivered to observers after a mutation
// has been persisted.
type Event struct {
	Kind EventKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// Engine owns the authoritative local copy of a user's expenses and
// reports. All state lives behind one mutex; remote calls are issued
// outside it, and reports with a status operation in flight are guarded
// so concurrent recall/delete on the same report cannot race at the
// backend.
type Engine struct {
	db       DB
	images   ImageStore
	remote   Remote
	idGen    IDGenerator
	clock    TimeSource
	userName string

	mu       sync.Mutex
	expenses map[string]*Expense
	reports  map[string]*Report
	mappings map[string]string
	inFlight map[string]bool

	events chan Event
}

// NewEngine creates an Engine and loads the persisted state into the
// observable cache.
func NewEngine(db DB, images ImageStore, remote Remote, userName string) (*Engine, error) {
	return NewEngineWithDeps(db, images, remote, userName, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewEngineWithDeps creates an Engine with custom dependencies for testing
func NewEngineWithDeps(db DB, images ImageStore, remote Remote, userName string, idGen IDGenerator, clock TimeSource) (*Engine, error) {
	e := &Engine{
		db:       db,
		images:   images,
		remote:   remote,
		idGen:    idGen,
		clock:    clock,
		userName: userName,
		expenses: make(map[string]*Expense),
		reports:  make(map[string]*Report),
		mappings: make(map[string]string),
		inFlight: make(map[string]bool),
		events:   make(chan Event, 64),
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

// load pulls the persisted records into the cache at startup.
func (e *Engine) load() error {
	expenses, err := e.db.ListExpenses()
	if err != nil {
		return fmt.Errorf("loading expenses: %w", err)
	}
	for _, exp := range expenses {
		e.expenses[exp.ID] = exp
	}

	reports, err := e.db.ListReports()
	if err != nil {
		return fmt.Errorf("loading reports: %w", err)
	}
	for _, r := range reports {
		e.reports[r.ID] = r
	}

	mappings, err := e.db.ListCategoryMappings()
	if err != nil {
		return fmt.Errorf("loading category mappings: %w", err)
	}
	for _, m := range mappings {
		e.mappings[m.Category] = m.AccountCode
	}

	return nil
}

// UserName returns the display name the engine stamps onto reports.
func (e *Engine) UserName() string {
	return e.userName
}

// Events returns the change-notification channel. Notifications are
// dropped rather than block a mutation when no observer keeps up.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) notify(kind EventKind, id string) {
	select {
	case e.events <- Event{Kind: kind, ID: id}:
	default:
	}
}

// AddExpense stores a newly captured expense, together with its receipt
// image when one was taken. A missing ID is assigned client-side.
func (e *Engine) AddExpense(exp *Expense, image []byte, imageName string) error {
	now := e.clock.Now()
	if exp.ID == "" {
		exp.ID = e.idGen.Generate()
	}
	exp.CreatedAt = now
	exp.UpdatedAt = now

	if len(image) > 0 {
		path, err := e.images.Save(exp.ID, imageName, image)
		if err != nil {
			return fmt.Errorf("saving receipt image: %w", err)
		}
		exp.ImagePath = path
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.SaveExpense(exp); err != nil {
		if exp.ImagePath != "" {
			e.images.Delete(exp.ImagePath)
		}
		return fmt.Errorf("saving expense: %w", err)
	}
	e.expenses[exp.ID] = exp
	e.notify(EventExpensesChanged, exp.ID)
	return nil
}

// UpdateExpense applies edited fields to an expense locally, then mirrors
// them to the remote receipt record. A remote failure is returned but the
// local edit stands; the next refresh reconciles.
func (e *Engine) UpdateExpense(ctx context.Context, exp *Expense) error {
	e.mu.Lock()
	existing, ok := e.expenses[exp.ID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("expense %s: %w", exp.ID, ErrNotFound)
	}
	exp.CreatedAt = existing.CreatedAt
	if exp.ImagePath == "" {
		exp.ImagePath = existing.ImagePath
	}
	exp.UpdatedAt = e.clock.Now()

	if err := e.db.SaveExpense(exp); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("saving expense: %w", err)
	}
	e.expenses[exp.ID] = exp
	e.notify(EventExpensesChanged, exp.ID)
	e.mu.Unlock()

	if err := e.remote.UpdateReceipt(ctx, exp.ID,
		FormatCents(exp.AmountCents),
		exp.Date.Format("01/02/2006"),
		exp.Category, exp.Title, exp.Comment,
	); err != nil {
		slog.Warn("remote receipt update failed, local edit kept", "expense", exp.ID, "error", err)
		return fmt.Errorf("mirroring expense %s: %w", exp.ID, err)
	}
	return nil
}

// RemoveExpense deletes an expense, detaches it from any non-approved
// report, and releases its receipt image.
func (e *Engine) RemoveExpense(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, ok := e.expenses[id]
	if !ok {
		return fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}

	for _, r := range e.reports {
		if r.Status == StatusApproved || !r.HasExpense(id) {
			continue
		}
		r.ExpenseIDs = remove(r.ExpenseIDs, id)
		r.UpdatedAt = e.clock.Now()
		if err := e.db.SaveReport(r); err != nil {
			return fmt.Errorf("detaching expense from report %s: %w", r.ID, err)
		}
	}

	if exp.ImagePath != "" {
		if err := e.images.Delete(exp.ImagePath); err != nil {
			slog.Warn("failed to delete receipt image", "path", exp.ImagePath, "error", err)
		}
	}

	if err := e.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	delete(e.expenses, id)
	e.notify(EventExpensesChanged, id)
	e.notify(EventReportsChanged, "")
	return nil
}

// AddToDraft attaches an expense to the draft report, creating the draft
// lazily. The local attach is optimistic; the remote mirror's failure is
// returned without rolling the attach back.
func (e *Engine) AddToDraft(ctx context.Context, expenseID string) error {
	e.mu.Lock()

	if _, ok := e.expenses[expenseID]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("expense %s: %w", expenseID, ErrNotFound)
	}

	for _, r := range e.reports {
		if !r.IsDraft() && r.HasExpense(expenseID) {
			e.mu.Unlock()
			return fmt.Errorf("expense %s already belongs to report %s: %w", expenseID, r.ID, ErrValidation)
		}
	}

	draft := e.draftLocked()
	if draft == nil {
		draft = &Report{
			ID:        e.idGen.Generate(),
			Name:      DraftReportName,
			Status:    StatusUnsubmitted,
			UserName:  e.userName,
			CreatedAt: e.clock.Now(),
		}
		e.reports[draft.ID] = draft
	}

	if !draft.HasExpense(expenseID) {
		draft.ExpenseIDs = append(draft.ExpenseIDs, expenseID)
	}
	draft.UpdatedAt = e.clock.Now()
	if err := e.db.SaveReport(draft); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("saving draft report: %w", err)
	}
	e.notify(EventReportsChanged, draft.ID)
	e.mu.Unlock()

	if err := e.remote.AttachReceipt(ctx, expenseID); err != nil {
		slog.Warn("remote attach failed, local attach kept", "expense", expenseID, "error", err)
		return fmt.Errorf("mirroring attach of %s: %w", expenseID, err)
	}
	return nil
}

// RemoveFromDraft detaches an expense from the draft report.
func (e *Engine) RemoveFromDraft(expenseID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	draft := e.draftLocked()
	if draft == nil || !draft.HasExpense(expenseID) {
		return fmt.Errorf("expense %s is not in the draft report: %w", expenseID, ErrNotFound)
	}

	draft.ExpenseIDs = remove(draft.ExpenseIDs, expenseID)
	draft.UpdatedAt = e.clock.Now()
	if err := e.db.SaveReport(draft); err != nil {
		return fmt.Errorf("saving draft report: %w", err)
	}
	e.notify(EventReportsChanged, draft.ID)
	return nil
}

// Submit converts the draft into a persisted, server-tracked report:
// create the remote container, push and attach every draft expense, mark
// it submitted, and only then re-point the expense ids onto a new local
// report and reset the draft. Any remote failure leaves the draft
// untouched.
func (e *Engine) Submit(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	draft := e.draftLocked()
	if draft == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no draft report: %w", ErrValidation)
	}
	if err := checkSubmit(draft); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if err := e.acquireLocked(draft.ID); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	draftID := draft.ID
	expenseIDs := append([]string(nil), draft.ExpenseIDs...)
	snapshots := make([]*Expense, 0, len(expenseIDs))
	for _, id := range expenseIDs {
		if exp, ok := e.expenses[id]; ok {
			copied := *exp
			snapshots = append(snapshots, &copied)
		}
	}
	e.mu.Unlock()
	defer e.release(draftID)

	if len(snapshots) != len(expenseIDs) {
		return nil, fmt.Errorf("draft references missing expenses: %w", ErrNotFound)
	}

	remoteID := e.idGen.Generate()
	if err := e.remote.CreateReport(ctx, remoteID); err != nil {
		return nil, fmt.Errorf("creating remote report: %w", err)
	}

	for _, exp := range snapshots {
		if err := e.remote.UpdateReceipt(ctx, exp.ID,
			FormatCents(exp.AmountCents),
			exp.Date.Format("01/02/2006"),
			exp.Category, exp.Title, exp.Comment,
		); err != nil {
			return nil, fmt.Errorf("pushing receipt %s: %w", exp.ID, err)
		}
		if err := e.remote.AttachReceipt(ctx, exp.ID); err != nil {
			return nil, fmt.Errorf("attaching receipt %s: %w", exp.ID, err)
		}
	}

	if err := e.remote.SubmitReport(ctx, remoteID); err != nil {
		return nil, fmt.Errorf("submitting remote report: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	submitted := &Report{
		ID:         remoteID,
		Name:       now.Format("20060102_150405"),
		ExpenseIDs: expenseIDs,
		Status:     StatusUnderReview,
		UserName:   e.userName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Persist the submitted report before touching the draft so a crash in
	// between never loses the expense associations.
	if err := e.db.SaveReport(submitted); err != nil {
		return nil, fmt.Errorf("saving submitted report: %w", err)
	}
	e.reports[submitted.ID] = submitted

	if draft, ok := e.reports[draftID]; ok {
		draft.ExpenseIDs = nil
		draft.UpdatedAt = now
		if err := e.db.SaveReport(draft); err != nil {
			return nil, fmt.Errorf("resetting draft report: %w", err)
		}
	}

	e.notify(EventReportsChanged, submitted.ID)
	slog.Info("report submitted", "report", submitted.ID, "expenses", len(expenseIDs))
	return submitted, nil
}

// Recall pulls a report back from review. The status is reset only after
// the remote call succeeds; the report keeps its id and expenses.
func (e *Engine) Recall(ctx context.Context, reportID string) error {
	release, err := e.beginStatusOp(reportID, checkRecall)
	if err != nil {
		return err
	}
	defer release()

	if err := e.remote.RecallReport(ctx, reportID); err != nil {
		return fmt.Errorf("recalling report: %w", err)
	}

	return e.applyStatus(reportID, StatusUnsubmitted, nil)
}

// Approve marks a report approved with an optional comment. Admin action;
// the report moves into the archived set.
func (e *Engine) Approve(ctx context.Context, reportID, comment string) error {
	release, err := e.beginStatusOp(reportID, checkReview)
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	userID := ""
	if r, ok := e.reports[reportID]; ok {
		userID = r.UserID
	}
	e.mu.Unlock()

	if err := e.remote.ApproveReport(ctx, userID, reportID, comment); err != nil {
		return fmt.Errorf("approving report: %w", err)
	}

	return e.applyStatus(reportID, StatusApproved, &comment)
}

// Reject returns a report to its owner with a comment. Admin action; the
// owner may edit and resubmit, or delete.
func (e *Engine) Reject(ctx context.Context, reportID, comment string) error {
	release, err := e.beginStatusOp(reportID, checkReview)
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	userID := ""
	if r, ok := e.reports[reportID]; ok {
		userID = r.UserID
	}
	e.mu.Unlock()

	if err := e.remote.ReturnReport(ctx, userID, reportID, comment); err != nil {
		return fmt.Errorf("returning report: %w", err)
	}

	return e.applyStatus(reportID, StatusRejected, &comment)
}

// DeleteReport removes a non-approved report. Its expenses stay in the
// active expense list. The draft is local-only; every other report is
// deleted remotely first.
func (e *Engine) DeleteReport(ctx context.Context, reportID string) error {
	release, err := e.beginStatusOp(reportID, checkDelete)
	if err != nil {
		return err
	}
	defer release()

	e.mu.Lock()
	isDraft := false
	if r, ok := e.reports[reportID]; ok {
		isDraft = r.IsDraft()
	}
	e.mu.Unlock()

	if !isDraft {
		if err := e.remote.DeleteReport(ctx, reportID); err != nil {
			return fmt.Errorf("deleting remote report: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.db.DeleteReport(reportID); err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	delete(e.reports, reportID)
	e.notify(EventReportsChanged, reportID)
	return nil
}

// Refresh merges the backend's view of the user's reports into the
// cache: the submitted-and-returned listing plus the approved archive.
// Unknown reports are added, status and comment are overwritten from
// remote truth, and reports the backend no longer lists are left alone.
func (e *Engine) Refresh(ctx context.Context) error {
	returned, err := e.remote.ReturnedReports(ctx)
	if err != nil {
		return fmt.Errorf("fetching reports: %w", err)
	}
	approved, err := e.remote.ApprovedReports(ctx)
	if err != nil {
		return fmt.Errorf("fetching approved reports: %w", err)
	}
	return e.merge(append(returned, approved...))
}

// RefreshPending pulls every report awaiting review, together with its
// expenses, into the cache. Admin refresh.
func (e *Engine) RefreshPending(ctx context.Context) error {
	remote, err := e.remote.SubmittedReports(ctx)
	if err != nil {
		return fmt.Errorf("fetching submitted reports: %w", err)
	}

	for _, rr := range remote {
		expenses, err := e.remote.ReportExpenses(ctx, rr.ReportNumber)
		if err != nil {
			return fmt.Errorf("fetching expenses for report %s: %w", rr.ReportNumber, err)
		}

		e.mu.Lock()
		ids := make([]string, 0, len(expenses))
		for _, re := range expenses {
			exp, err := expenseFromRemote(re)
			if err != nil {
				e.mu.Unlock()
				return fmt.Errorf("report %s: %w", rr.ReportNumber, err)
			}
			if existing, ok := e.expenses[exp.ID]; ok {
				exp.CreatedAt = existing.CreatedAt
				exp.ImagePath = existing.ImagePath
			} else {
				exp.CreatedAt = e.clock.Now()
			}
			exp.UpdatedAt = e.clock.Now()
			if err := e.db.SaveExpense(exp); err != nil {
				e.mu.Unlock()
				return fmt.Errorf("saving expense %s: %w", exp.ID, err)
			}
			e.expenses[exp.ID] = exp
			ids = append(ids, exp.ID)
		}

		report := e.reports[rr.ReportNumber]
		if report == nil {
			report = &Report{
				ID:        rr.ReportNumber,
				Name:      rr.ReportNumber,
				CreatedAt: e.clock.Now(),
			}
			e.reports[report.ID] = report
		}
		report.Status = StatusUnderReview
		report.UserID = rr.UserID
		report.UserName = rr.Name
		report.Comment = rr.Comment
		report.ExpenseIDs = ids
		report.UpdatedAt = e.clock.Now()
		if err := e.db.SaveReport(report); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("saving report %s: %w", report.ID, err)
		}
		e.mu.Unlock()
	}

	e.notify(EventReportsChanged, "")
	e.notify(EventExpensesChanged, "")
	return nil
}

func (e *Engine) merge(remote []api.RemoteReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rr := range remote {
		report := e.reports[rr.ReportNumber]
		if report == nil {
			report = &Report{
				ID:        rr.ReportNumber,
				Name:      rr.ReportNumber,
				UserName:  rr.Name,
				CreatedAt: e.clock.Now(),
			}
			e.reports[report.ID] = report
		}
		report.Status = mapRemoteStatus(rr.Status)
		report.UserID = rr.UserID
		report.Comment = rr.Comment
		report.UpdatedAt = e.clock.Now()
		if err := e.db.SaveReport(report); err != nil {
			return fmt.Errorf("saving report %s: %w", report.ID, err)
		}
	}

	e.notify(EventReportsChanged, "")
	return nil
}

// mapRemoteStatus folds the backend's status vocabulary onto the local
// lifecycle states.
func mapRemoteStatus(s string) Status {
	switch s {
	case "approved", "accepted", "Approved", "Accepted":
		return StatusApproved
	case "returned", "rejected", "Returned", "Rejected":
		return StatusRejected
	case "unsubmitted", "recalled", "Unsubmitted":
		return StatusUnsubmitted
	default:
		return StatusUnderReview
	}
}

func expenseFromRemote(re api.RemoteExpense) (*Expense, error) {
	cents, err := ParseCents(re.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid total for receipt %s: %w", re.ReceiptID, err)
	}
	date, err := time.Parse("2006-01-02", re.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date for receipt %s: %w", re.ReceiptID, err)
	}

	title := re.Title
	if title == "" {
		title = "untitled expense"
	}
	return &Expense{
		ID:          re.ReceiptID,
		Title:       title,
		Comment:     re.Comment,
		Category:    re.Category,
		AmountCents: cents,
		Date:        date,
	}, nil
}

// beginStatusOp validates a status transition under the lock and takes
// the report's in-flight guard, returning the release func.
func (e *Engine) beginStatusOp(reportID string, check func(*Report) error) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report, ok := e.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err := check(report); err != nil {
		return nil, err
	}
	if err := e.acquireLocked(reportID); err != nil {
		return nil, err
	}
	return func() { e.release(reportID) }, nil
}

func (e *Engine) acquireLocked(reportID string) error {
	if e.inFlight[reportID] {
		return fmt.Errorf("report %s has an operation in flight: %w", reportID, ErrValidation)
	}
	e.inFlight[reportID] = true
	return nil
}

func (e *Engine) release(reportID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, reportID)
}

// applyStatus commits a status transition locally after its remote call
// succeeded.
func (e *Engine) applyStatus(reportID string, status Status, comment *string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	report, ok := e.reports[reportID]
	if !ok {
		return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	report.Status = status
	if comment != nil {
		report.Comment = *comment
	}
	report.UpdatedAt = e.clock.Now()
	if err := e.db.SaveReport(report); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	e.notify(EventReportsChanged, reportID)
	return nil
}

func (e *Engine) draftLocked() *Report {
	for _, r := range e.reports {
		if r.IsDraft() {
			return r
		}
	}
	return nil
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
