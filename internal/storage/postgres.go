package storage

import (
	"context"
	"errors"
	"fmt"

	"voucherwatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS voucher_links (
	id            TEXT PRIMARY KEY,
	encrypted_url TEXT NOT NULL,
	fingerprint   TEXT NOT NULL UNIQUE,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_voucher_links_created_at ON voucher_links (created_at);
`

// PostgresStorage implements the Storage interface using PostgreSQL.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinIdleConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Links returns all saved links, oldest first.
func (ps *PostgresStorage) Links(ctx context.Context) ([]*models.VoucherLink, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, encrypted_url, fingerprint, created_at FROM voucher_links ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.VoucherLink, 0)
	for rows.Next() {
		link, err := scanPostgresLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

// GetLink retrieves a link by its ID.
func (ps *PostgresStorage) GetLink(ctx context.Context, id string) (*models.VoucherLink, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, encrypted_url, fingerprint, created_at FROM voucher_links WHERE id = $1`, id)
	return ps.scanOne(row)
}

// GetLinkByFingerprint retrieves a link by the fingerprint of its URL.
func (ps *PostgresStorage) GetLinkByFingerprint(ctx context.Context, fingerprint string) (*models.VoucherLink, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, encrypted_url, fingerprint, created_at FROM voucher_links WHERE fingerprint = $1`, fingerprint)
	return ps.scanOne(row)
}

func (ps *PostgresStorage) scanOne(row pgx.Row) (*models.VoucherLink, error) {
	link, err := scanPostgresLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// CreateLink stores a new link.
func (ps *PostgresStorage) CreateLink(ctx context.Context, link *models.VoucherLink) error {
	tag, err := ps.pool.Exec(ctx,
		`INSERT INTO voucher_links (id, encrypted_url, fingerprint, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		link.ID, link.EncryptedURL, link.Fingerprint, link.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// DeleteLink removes a link by its ID.
func (ps *PostgresStorage) DeleteLink(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM voucher_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

var _ Storage = (*PostgresStorage)(nil)
