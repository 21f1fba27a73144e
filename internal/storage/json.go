package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voucherwatch/internal/models"
)

const defaultJSONCacheTTL = 5 * time.Minute

// JSONStorage implements the Storage interface using a single JSON file.
// It keeps an in-memory copy that is refreshed when the file changes on disk
// or the cache TTL expires.
type JSONStorage struct {
	filePath     string
	cacheTTL     time.Duration
	mu           sync.RWMutex
	data         *JSONData
	lastModified time.Time
	cacheExpiry  time.Time
}

// JSONData is the on-disk document.
type JSONData struct {
	Links       []*models.VoucherLink `json:"links"`
	LastUpdated time.Time             `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultJSONCacheTTL
	}

	storage := &JSONStorage{
		filePath: config.Path,
		cacheTTL: cacheTTL,
	}

	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	if err := storage.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		return j.saveData(&JSONData{Links: []*models.VoucherLink{}})
	}
	return nil
}

// loadData refreshes the in-memory copy when it is stale. A read-locked fast
// path serves cache hits; the slow path re-checks under the write lock before
// touching the file.
func (j *JSONStorage) loadData() error {
	j.mu.RLock()
	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		j.mu.RUnlock()
		return nil
	}
	j.mu.RUnlock()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.data != nil && time.Now().Before(j.cacheExpiry) {
		return nil
	}

	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if j.data != nil && !info.ModTime().After(j.lastModified) {
		j.cacheExpiry = time.Now().Add(j.cacheTTL)
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	j.data = &data
	j.lastModified = info.ModTime()
	j.cacheExpiry = time.Now().Add(j.cacheTTL)
	return nil
}

// saveData writes data to a temporary file and renames it into place.
// Caller must hold the write lock once the storage is initialised.
func (j *JSONStorage) saveData(data *JSONData) error {
	data.LastUpdated = time.Now().UTC()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.filePath), filepath.Base(j.filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(fileData); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, j.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	if info, err := os.Stat(j.filePath); err == nil {
		j.lastModified = info.ModTime()
	}
	return nil
}

// Links returns all saved links, oldest first
func (j *JSONStorage) Links(ctx context.Context) ([]*models.VoucherLink, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	links := make([]*models.VoucherLink, 0, len(j.data.Links))
	for _, link := range j.data.Links {
		linkCopy := *link
		links = append(links, &linkCopy)
	}
	sortLinks(links)
	return links, nil
}

// GetLink retrieves a link by its ID
func (j *JSONStorage) GetLink(ctx context.Context, id string) (*models.VoucherLink, error) {
	return j.find(func(l *models.VoucherLink) bool { return l.ID == id })
}

// GetLinkByFingerprint retrieves a link by the fingerprint of its URL
func (j *JSONStorage) GetLinkByFingerprint(ctx context.Context, fingerprint string) (*models.VoucherLink, error) {
	return j.find(func(l *models.VoucherLink) bool { return l.Fingerprint == fingerprint })
}

func (j *JSONStorage) find(match func(*models.VoucherLink) bool) (*models.VoucherLink, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, link := range j.data.Links {
		if match(link) {
			linkCopy := *link
			return &linkCopy, nil
		}
	}
	return nil, ErrNotFound
}

// CreateLink stores a new link
func (j *JSONStorage) CreateLink(ctx context.Context, link *models.VoucherLink) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, existing := range j.data.Links {
		if existing.ID == link.ID || existing.Fingerprint == link.Fingerprint {
			return ErrAlreadyExists
		}
	}

	linkCopy := *link
	j.data.Links = append(j.data.Links, &linkCopy)
	if err := j.saveData(j.data); err != nil {
		j.data.Links = j.data.Links[:len(j.data.Links)-1]
		return err
	}
	return nil
}

// DeleteLink removes a link by its ID
func (j *JSONStorage) DeleteLink(ctx context.Context, id string) error {
	if err := j.loadData(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for i, link := range j.data.Links {
		if link.ID == id {
			remaining := make([]*models.VoucherLink, 0, len(j.data.Links)-1)
			remaining = append(remaining, j.data.Links[:i]...)
			remaining = append(remaining, j.data.Links[i+1:]...)

			previous := j.data.Links
			j.data.Links = remaining
			if err := j.saveData(j.data); err != nil {
				j.data.Links = previous
				return err
			}
			return nil
		}
	}

	return ErrNotFound
}

// Ping checks that the backing file is still accessible
func (j *JSONStorage) Ping(ctx context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	return nil
}

// Close is a no-op for JSON storage
func (j *JSONStorage) Close() error {
	return nil
}

var _ Storage = (*JSONStorage)(nil)
