package expense

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImageStore defines the interface for receipt image storage. An image is
// owned by exactly one expense; deleting the expense releases the image.
type ImageStore interface {
	// Save stores image data for an expense and returns the stored path
	Save(expenseID, originalName string, data []byte) (string, error)

	// Get retrieves image data by stored path
	Get(path string) ([]byte, error)

	// Delete removes a stored image
	Delete(path string) error
}

// LocalImageStore implements ImageStore on the local filesystem, one file
// per expense named by the expense id plus the original extension.
type LocalImageStore struct {
	basePath string
}

// NewLocalImageStore creates a new LocalImageStore instance
func NewLocalImageStore(basePath string) (*LocalImageStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}

	return &LocalImageStore{basePath: basePath}, nil
}

// Save stores image data for an expense and returns the stored path
func (l *LocalImageStore) Save(expenseID, originalName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	name := expenseID + ext
	if err := os.WriteFile(filepath.Join(l.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return name, nil
}

// Get retrieves image data by stored path
func (l *LocalImageStore) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, path))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete removes a stored image
func (l *LocalImageStore) Delete(path string) error {
	if err := os.Remove(filepath.Join(l.basePath, path)); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
