package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PresignAPI is the slice of the backend the archive pipeline needs:
// presigned-URL issuance and the archived file listing. *api.Client
// satisfies it.
type PresignAPI interface {
	CSVUploadURL(ctx context.Context, fileName string) (string, error)
	CSVDownloadURL(ctx context.Context, fileName string) (string, error)
	CSVFileNames(ctx context.Context) ([]string, error)
}

// Service moves CSV bytes between the client and object storage. The
// backend only ever issues presigned URLs; the bytes go direct.
type Service struct {
	api  PresignAPI
	http *http.Client
}

// NewService creates an archive Service.
func NewService(presign PresignAPI) *Service {
	return &Service{
		api:  presign,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload archives one CSV file: fetch a presigned PUT URL for the name,
// then transfer the bytes with Content-Type text/csv. A URL-fetch failure
// short-circuits the transfer.
func (s *Service) Upload(ctx context.Context, fileName, contents string) error {
	url, err := s.api.CSVUploadURL(ctx, fileName)
	if err != nil {
		return fmt.Errorf("could not get upload URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(contents))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload returned HTTP %d", resp.StatusCode)
	}
	return nil
}
