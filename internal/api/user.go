package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// RemoteReport is a report record as the backend returns it on the user
// and admin listing endpoints.
type RemoteReport struct {
	ReportNumber string  `json:"report_number"`
	UserID       string  `json:"user_id"`
	Total        float64 `json:"total"`
	Status       string  `json:"status"`
	Name         string  `json:"name"`
	Comment      string  `json:"comment"`
}

// RemoteExpense is an expense record as the backend returns it when
// listing a report's contents.
type RemoteExpense struct {
	ReceiptID    string `json:"receipt_id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Amount       string `json:"act_amount"`
	Date         string `json:"act_date"` // yyyy-MM-dd
	Category     string `json:"act_category"`
	Title        string `json:"title"`
	Comment      string `json:"comment"`
	ReportNumber string `json:"report_number"`
	CreatedAt    string `json:"created_at"`
}

// CreateReport creates a new empty report container on the server.
func (c *Client) CreateReport(ctx context.Context, reportNumber string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPut,
		Path:   "user/CreateReport",
		Body:   map[string]any{"report_number": reportNumber},
	})
	return err
}

// AttachReceipt adds a receipt to the user's current report on the server.
func (c *Client) AttachReceipt(ctx context.Context, receiptID string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPatch,
		Path:   "user/AttachReceiptToCurrentReport",
		Body:   map[string]any{"receipt_id": receiptID},
	})
	return err
}

// UpdateReceipt pushes an expense's current field values onto its remote
// receipt record.
func (c *Client) UpdateReceipt(ctx context.Context, receiptID, amount, date, category, title, comment string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPatch,
		Path:   "user/UpdateReceipt",
		Body: map[string]any{
			"receipt_id":   receiptID,
			"act_amount":   amount,
			"act_date":     date,
			"act_category": category,
			"title":        title,
			"comment":      comment,
		},
	})
	return err
}

// SubmitReport marks a report as submitted on the server.
func (c *Client) SubmitReport(ctx context.Context, reportNumber string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPatch,
		Path:   "user/SubmitReport",
		Body:   map[string]any{"report_number": reportNumber},
	})
	return err
}

// RecallReport un-submits a report on the server.
func (c *Client) RecallReport(ctx context.Context, reportNumber string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPatch,
		Path:   "user/RecallReport",
		Body:   map[string]any{"report_number": reportNumber},
	})
	return err
}

// DeleteReport deletes a report from the server.
func (c *Client) DeleteReport(ctx context.Context, reportNumber string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodDelete,
		Path:   "user/DeleteReport",
		Body:   map[string]any{"report_number": reportNumber},
	})
	return err
}

// ReturnedReports lists the user's submitted and returned reports: the
// remote truth merged on refresh.
func (c *Client) ReturnedReports(ctx context.Context) ([]RemoteReport, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodGet,
		Path:   "user/RetrieveSubmittedAndReturnedReports",
	})
	if err != nil {
		return nil, err
	}

	var reports []RemoteReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, &ParseError{Err: err}
	}
	return reports, nil
}

// ApprovedReports lists the user's approved (archived) reports.
func (c *Client) ApprovedReports(ctx context.Context) ([]RemoteReport, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodGet,
		Path:   "user/RetrieveApprovedReports",
	})
	if err != nil {
		return nil, err
	}

	var reports []RemoteReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, &ParseError{Err: err}
	}
	return reports, nil
}
