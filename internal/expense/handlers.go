package expense

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pineapple-expense/expense-engine/internal/api"
	"github.com/pineapple-expense/expense-engine/internal/archive"
)

// writeError writes a JSON error envelope with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// engineError maps an engine failure onto an HTTP status: validation 400,
// missing records 404, illegal transitions 409, remote failures 502.
func engineError(w http.ResponseWriter, err error) {
	var netErr *api.NetworkError
	var httpErr *api.HTTPError
	var parseErr *api.ParseError

	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrIllegalTransition):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &netErr), errors.As(err, &httpErr), errors.As(err, &parseErr):
		writeError(w, err.Error(), http.StatusBadGateway)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// isRemoteFailure reports whether an error came from the remote side of
// an optimistic mutation, in which case the local change stands.
func isRemoteFailure(err error) bool {
	var netErr *api.NetworkError
	var httpErr *api.HTTPError
	var parseErr *api.ParseError
	return errors.As(err, &netErr) || errors.As(err, &httpErr) || errors.As(err, &parseErr)
}

func writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListExpenses returns all expenses
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Expenses())
}

// handleUnattachedExpenses returns expenses not held by any submitted,
// approved, or rejected report
func (s *Server) handleUnattachedExpenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.UnattachedExpenses())
}

// handleCreateExpense captures a new expense from a multipart form with
// optional receipt image
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	// 50MB cap to handle high-resolution phone photos
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	cents, err := ParseCents(r.FormValue("total"))
	if err != nil {
		writeError(w, "Invalid total", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", r.FormValue("date"))
	if err != nil {
		writeError(w, "Invalid date, want yyyy-mm-dd", http.StatusBadRequest)
		return
	}

	exp := &Expense{
		Title:       r.FormValue("title"),
		Comment:     r.FormValue("comment"),
		Category:    r.FormValue("category"),
		AmountCents: cents,
		Date:        date,
	}

	var image []byte
	var imageName string
	if f, header, err := r.FormFile("image"); err == nil {
		defer f.Close()
		image, err = io.ReadAll(f)
		if err != nil {
			writeError(w, "Error reading image", http.StatusBadRequest)
			return
		}
		imageName = header.Filename
	}

	if err := s.engine.AddExpense(exp, image, imageName); err != nil {
		slog.Error("Error creating expense", "error", err)
		engineError(w, err)
		return
	}

	if r.FormValue("attach") == "true" {
		if err := s.engine.AddToDraft(r.Context(), exp.ID); err != nil {
			slog.Warn("Expense created but draft attach failed", "expense", exp.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, exp)
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	exp, err := s.engine.Expense(r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// handleGetExpenseImage returns the receipt image for an expense
func (s *Server) handleGetExpenseImage(w http.ResponseWriter, r *http.Request) {
	exp, err := s.engine.Expense(r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	if exp.ImagePath == "" {
		writeError(w, "Expense has no receipt image", http.StatusNotFound)
		return
	}
	data, err := s.engine.images.Get(exp.ImagePath)
	if err != nil {
		writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// handlePredictExpense fetches the backend's field predictions for an
// expense's receipt
func (s *Server) handlePredictExpense(w http.ResponseWriter, r *http.Request) {
	prediction, err := s.receipts.Predict(r.Context(), r.PathValue("id"), s.engine.UserName())
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

// handleReceiptUploadURL issues a presigned URL for pushing an expense's
// receipt image into backend object storage, where the prediction
// service reads it. The bytes go direct; the engine never relays them.
func (s *Server) handleReceiptUploadURL(w http.ResponseWriter, r *http.Request) {
	exp, err := s.engine.Expense(r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}

	fileName := exp.ID + ".jpg"
	if exp.ImagePath != "" {
		fileName = exp.ImagePath
	}
	url, err := s.receipts.ReceiptUploadURL(r.Context(), fileName)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "file_name": fileName})
}

// handleUpdateExpense applies edited fields to an expense
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Comment  string `json:"comment"`
		Category string `json:"category"`
		Total    string `json:"total"`
		Date     string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cents, err := ParseCents(req.Total)
	if err != nil {
		writeError(w, "Invalid total", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, "Invalid date, want yyyy-mm-dd", http.StatusBadRequest)
		return
	}

	exp := &Expense{
		ID:          r.PathValue("id"),
		Title:       req.Title,
		Comment:     req.Comment,
		Category:    req.Category,
		AmountCents: cents,
		Date:        date,
	}
	if err := s.engine.UpdateExpense(r.Context(), exp); err != nil {
		if !isRemoteFailure(err) {
			engineError(w, err)
			return
		}
		// The local edit is kept on remote-mirror failure; report it but
		// return the updated record.
		slog.Warn("Expense updated locally, remote mirror failed", "expense", exp.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, exp)
}

// handleDeleteExpense deletes an expense and its receipt image
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveExpense(r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListReports returns reports, optionally filtered by status
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var reports []*Report
	switch r.URL.Query().Get("status") {
	case "pending":
		reports = s.engine.PendingReports()
	case "approved":
		reports = s.engine.ApprovedReports()
	case "rejected":
		reports = s.engine.RejectedReports()
	default:
		reports = s.engine.Reports()
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleGetReport returns a single report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Report(r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGetDraft returns the draft report
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft := s.engine.Draft()
	if draft == nil {
		writeError(w, "No draft report", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// handleAddToDraft attaches an expense to the draft report
func (s *Server) handleAddToDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpenseID string `json:"expense_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExpenseID == "" {
		writeError(w, "expense_id required", http.StatusBadRequest)
		return
	}

	if err := s.engine.AddToDraft(r.Context(), req.ExpenseID); err != nil {
		if !isRemoteFailure(err) {
			engineError(w, err)
			return
		}
		// Optimistic attach kept, remote mirror failed.
		slog.Warn("Draft attach mirrored with error", "expense", req.ExpenseID, "error", err)
	}
	writeJSON(w, http.StatusOK, s.engine.Draft())
}

// handleRemoveFromDraft detaches an expense from the draft report
func (s *Server) handleRemoveFromDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveFromDraft(r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Draft())
}

// handleSubmit submits the draft report
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Submit(r.Context())
	if err != nil {
		slog.Error("Error submitting report", "error", err)
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// handleRecall pulls a report back from review
func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Recall(r.Context(), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApprove approves a report (admin)
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleReview(w, r, s.engine.Approve)
}

// handleReject returns a report to its owner (admin)
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handleReview(w, r, s.engine.Reject)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, review func(ctx context.Context, reportID, comment string) error) {
	var req struct {
		Comment string `json:"comment"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := review(r.Context(), r.PathValue("id"), req.Comment); err != nil {
		engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteReport deletes a non-approved report
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteReport(r.Context(), r.PathValue("id")); err != nil {
		engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh merges remote report truth into the cache
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Refresh(r.Context()); err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Reports())
}

// handleRefreshPending pulls reports awaiting review (admin)
func (s *Server) handleRefreshPending(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RefreshPending(r.Context()); err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.PendingReports())
}

// handleListMappings returns the category to account-code table
func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Mappings())
}

// handleSetMapping stores the account code for a category
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountCode string `json:"account_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.engine.SetMapping(r.PathValue("category"), req.AccountCode); err != nil {
		engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteMapping removes the mapping for a category
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveMapping(r.PathValue("category")); err != nil {
		engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reportsForExport resolves a report-id selection, defaulting to the
// archived (approved) set.
func (s *Server) reportsForExport(ids []string) ([]*Report, error) {
	if len(ids) == 0 {
		return s.engine.ApprovedReports(), nil
	}
	reports := make([]*Report, 0, len(ids))
	for _, id := range ids {
		report, err := s.engine.Report(id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Server) buildCSV(ids []string) (string, error) {
	reports, err := s.reportsForExport(ids)
	if err != nil {
		return "", err
	}
	expenses := make(map[string]*Expense)
	for _, exp := range s.engine.Expenses() {
		expenses[exp.ID] = exp
	}
	return archive.BuildCSV(reports, expenses, s.engine.Mappings()), nil
}

// handleBuildCSV renders selected reports as CSV text
func (s *Server) handleBuildCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportIDs []string `json:"report_ids"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	contents, err := s.buildCSV(req.ReportIDs)
	if err != nil {
		engineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte(contents))
}

// handleUploadCSV builds a CSV from selected reports and archives it
// through a presigned URL
func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName  string   `json:"file_name"`
		ReportIDs []string `json:"report_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		writeError(w, "file_name required", http.StatusBadRequest)
		return
	}

	contents, err := s.buildCSV(req.ReportIDs)
	if err != nil {
		engineError(w, err)
		return
	}
	if err := s.archive.Upload(r.Context(), req.FileName, contents); err != nil {
		slog.Error("Error uploading CSV", "file", req.FileName, "error", err)
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file_name": req.FileName})
}

// handleDownloadAll fetches every archived CSV file
func (s *Server) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	entries, err := s.archive.DownloadAll(r.Context())
	if err != nil {
		slog.Error("Error downloading archived CSVs", "error", err, "fetched", len(entries))
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
