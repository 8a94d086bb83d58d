package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"sync"
)

// Entry is one archived CSV file fetched back from object storage.
// Ephemeral: fetched on demand, never authoritative state.
type Entry struct {
	FileName string `json:"file_name"`
	Contents string `json:"contents"`
}

type downloadResult struct {
	entry Entry
	err   error
}

// DownloadAll fetches every archived CSV file: one listing call, then a
// concurrent presign+GET pair per file. It returns exactly once, after
// every download has settled, with all successful entries and the joined
// failures. A failing download does not cancel its siblings.
func (s *Service) DownloadAll(ctx context.Context) ([]Entry, error) {
	keys, err := s.api.CSVFileNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list archived files: %w", err)
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}

	results := make(chan downloadResult, len(keys))
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			entry, err := s.download(ctx, key)
			results <- downloadResult{entry: entry, err: err}
		}(key)
	}
	wg.Wait()
	close(results)

	var entries []Entry
	var failures []error
	for r := range results {
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		entries = append(entries, r.entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FileName < entries[j].FileName })

	return entries, errors.Join(failures...)
}

// download fetches one archived file: presigned GET URL, then the body.
func (s *Service) download(ctx context.Context, key string) (Entry, error) {
	url, err := s.api.CSVDownloadURL(ctx, key)
	if err != nil {
		return Entry{}, fmt.Errorf("could not get download URL for %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("building download request for %s: %w", key, err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Entry{}, fmt.Errorf("download %s HTTP %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("reading %s: %w", key, err)
	}

	return Entry{FileName: path.Base(key), Contents: string(body)}, nil
}
