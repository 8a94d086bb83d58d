package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// SubmittedReports lists every report awaiting review across users.
func (c *Client) SubmittedReports(ctx context.Context) ([]RemoteReport, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodGet,
		Path:   "admin/RetrieveSubmittedReports",
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

// ReportExpenses lists the expenses attached to a submitted report.
func (c *Client) ReportExpenses(ctx context.Context, reportNumber string) ([]RemoteExpense, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodPost,
		Path:   "RetrieveReportExpenseInformation",
		Body:   map[string]any{"report_number": reportNumber},
	})
	if err != nil {
		return nil, err
	}

	// The expense list rides under a "receipts" key.
	var envelope struct {
		Receipts []RemoteExpense `json:"receipts"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{Err: err}
	}
	return envelope.Receipts, nil
}

// ApproveReport approves a submitted report with an optional comment.
func (c *Client) ApproveReport(ctx context.Context, userID, reportNumber, comment string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPatch,
		Path:   "admin/ApproveReport",
		Body: map[string]any{
			"user_id":       userID,
			"report_number": reportNumber,
			"comment":       comment,
		},
	})
	return err
}

// ReturnReport rejects a submitted report back to its owner with a
// comment.
func (c *Client) ReturnReport(ctx context.Context, userID, reportNumber, comment string) error {
	_, err := c.Do(ctx, Operation{
		Method: http.MethodPatch,
		Path:   "admin/ReturnReport",
		Body: map[string]any{
			"user_id":       userID,
			"report_number": reportNumber,
			"comment":       comment,
		},
	})
	return err
}

// CSVUploadURL requests a presigned PUT URL for archiving a CSV file.
func (c *Client) CSVUploadURL(ctx context.Context, fileName string) (string, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodPost,
		Path:   "admin/CsvPresignedURL",
		Body:   map[string]any{"fileName": fileName},
	})
	if err != nil {
		return "", err
	}
	return parsePresignedURL(body)
}

// CSVDownloadURL requests a presigned GET URL for an archived CSV file.
func (c *Client) CSVDownloadURL(ctx context.Context, fileName string) (string, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodPost,
		Path:   "admin/RetrieveCSVURL",
		Body:   map[string]any{"fileName": fileName},
	})
	if err != nil {
		return "", err
	}
	return parsePresignedURL(body)
}

// CSVFileNames lists the object keys of every archived CSV file.
func (c *Client) CSVFileNames(ctx context.Context) ([]string, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodGet,
		Path:   "admin/GetCSVFileNames",
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Files []struct {
			Key          string `json:"key"`
			LastModified string `json:"last_modified"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{Err: err}
	}

	keys := make([]string, 0, len(envelope.Files))
	for _, f := range envelope.Files {
		keys = append(keys, f.Key)
	}
	return keys, nil
}
