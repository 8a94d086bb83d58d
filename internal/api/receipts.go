package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Prediction is the backend's guess at an uploaded receipt's fields.
type Prediction struct {
	Key      string        `json:"key"`
	UserID   string        `json:"userId"`
	Category string        `json:"category"`
	Date     PredictedDate `json:"predicted_date"`
	Amount   string        `json:"amount"`
}

// PredictedDate is the date portion of a prediction, both assembled and
// split into parts.
type PredictedDate struct {
	FullDate string `json:"fullDate"`
	Month    string `json:"month"`
	Year     string `json:"year"`
	Day      string `json:"day"`
}

// ReceiptUploadURL requests a presigned PUT URL for uploading a receipt
// image.
func (c *Client) ReceiptUploadURL(ctx context.Context, fileName string) (string, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodPost,
		Path:   "s3-presigned-url",
		Body:   map[string]any{"fileName": fileName},
	})
	if err != nil {
		return "", err
	}
	return parsePresignedURL(body)
}

// Predict fetches the backend's field predictions for an uploaded receipt.
func (c *Client) Predict(ctx context.Context, receiptID, userName string) (*Prediction, error) {
	body, err := c.Do(ctx, Operation{
		Method: http.MethodPost,
		Path:   "predictions",
		Body: map[string]any{
			"receipt_id": receiptID,
			"name":       userName,
		},
	})
	if err != nil {
		return nil, err
	}

	var prediction Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &prediction, nil
}

// parsePresignedURL extracts a presigned URL from a response that may be a
// JSON object with a "presignedUrl" or "url" field, or a bare string with
// stray quotes.
func parsePresignedURL(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			PresignedURL string `json:"presignedUrl"`
			URL          string `json:"url"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return "", &ParseError{Err: err}
		}
		switch {
		case envelope.PresignedURL != "":
			return envelope.PresignedURL, nil
		case envelope.URL != "":
			return envelope.URL, nil
		default:
			return "", &ParseError{Err: fmt.Errorf("no URL field in JSON")}
		}
	}
	url := strings.Trim(trimmed, `"`)
	if url == "" {
		return "", &ParseError{Err: fmt.Errorf("empty presigned URL")}
	}
	return url, nil
}
