package storage

import (
	"context"
	"time"

	"voucherwatch/internal/models"
)

// Storage defines persistence for saved voucher links. Records are
// immutable once created: a link is either present or deleted.
//
// Implementations return ErrNotFound for unknown IDs or fingerprints and
// ErrAlreadyExists when CreateLink would duplicate an ID or fingerprint.
type Storage interface {
	// Links returns every saved link ordered by creation time, oldest first.
	Links(ctx context.Context) ([]*models.VoucherLink, error)

	// GetLink retrieves a link by its ID.
	GetLink(ctx context.Context, id string) (*models.VoucherLink, error)

	// GetLinkByFingerprint retrieves the link whose URL has the given fingerprint.
	GetLinkByFingerprint(ctx context.Context, fingerprint string) (*models.VoucherLink, error)

	// CreateLink stores a new link.
	CreateLink(ctx context.Context, link *models.VoucherLink) error

	// DeleteLink removes a link by its ID.
	DeleteLink(ctx context.Context, id string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// CacheTTL bounds how long the JSON backend trusts its in-memory copy
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`

	// Connection pool limits for database backends
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time,omitempty" yaml:"conn_max_idle_time,omitempty"`
}
