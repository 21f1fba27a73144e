package storage

import (
	"context"
	"sync"

	"voucherwatch/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory maps.
// Links are lost on restart.
type MemoryStorage struct {
	mu            sync.RWMutex
	links         map[string]*models.VoucherLink
	byFingerprint map[string]string // fingerprint -> ID
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		links:         make(map[string]*models.VoucherLink),
		byFingerprint: make(map[string]string),
	}, nil
}

// Links returns all saved links, oldest first
func (m *MemoryStorage) Links(ctx context.Context) ([]*models.VoucherLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := make([]*models.VoucherLink, 0, len(m.links))
	for _, link := range m.links {
		linkCopy := *link
		links = append(links, &linkCopy)
	}
	sortLinks(links)

	return links, nil
}

// GetLink retrieves a link by its ID
func (m *MemoryStorage) GetLink(ctx context.Context, id string) (*models.VoucherLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[id]
	if !exists {
		return nil, ErrNotFound
	}

	linkCopy := *link
	return &linkCopy, nil
}

// GetLinkByFingerprint retrieves a link by the fingerprint of its URL
func (m *MemoryStorage) GetLinkByFingerprint(ctx context.Context, fingerprint string) (*models.VoucherLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byFingerprint[fingerprint]
	if !exists {
		return nil, ErrNotFound
	}

	linkCopy := *m.links[id]
	return &linkCopy, nil
}

// CreateLink stores a new link
func (m *MemoryStorage) CreateLink(ctx context.Context, link *models.VoucherLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.byFingerprint[link.Fingerprint]; exists {
		return ErrAlreadyExists
	}

	// Store a copy to prevent external modification
	linkCopy := *link
	m.links[link.ID] = &linkCopy
	m.byFingerprint[link.Fingerprint] = link.ID

	return nil
}

// DeleteLink removes a link by its ID
func (m *MemoryStorage) DeleteLink(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[id]
	if !exists {
		return ErrNotFound
	}

	delete(m.byFingerprint, link.Fingerprint)
	delete(m.links, id)
	return nil
}

// Ping always succeeds for in-memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
