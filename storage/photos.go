// Package storage holds photo blobs. It is deliberately independent of the
// record database: a photo write and the subsequent report row write are two
// separate systems with no cross-system transaction.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// PhotoStore writes photo objects under a directory served at a public base
// URL.
type PhotoStore struct {
	dir     string
	baseURL string
}

// NewPhotoStore creates the store, making sure the backing directory exists.
func NewPhotoStore(dir, baseURL string) (*PhotoStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "reports"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &PhotoStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save stores one photo blob at a collision-resistant object name derived
// from the current time plus a random suffix, and returns the object name
// and its public URL.
func (s *PhotoStore) Save(data []byte) (string, string, error) {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	objectName := fmt.Sprintf("reports/%d_%s.jpg", time.Now().UnixMilli(), suffix)

	path := filepath.Join(s.dir, filepath.FromSlash(objectName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write photo object: %w", err)
	}

	publicURL := s.baseURL + "/" + objectName
	log.Infof("Photo stored: %s (%d bytes)", objectName, len(data))
	return objectName, publicURL, nil
}

// Dir returns the backing directory, served by the HTTP layer as /photos.
func (s *PhotoStore) Dir() string {
	return s.dir
}
