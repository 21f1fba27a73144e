package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voucherwatch/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS voucher_links (
	id            TEXT PRIMARY KEY,
	encrypted_url TEXT NOT NULL,
	fingerprint   TEXT NOT NULL UNIQUE,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_voucher_links_created_at ON voucher_links (created_at);
`

// SQLiteStorage implements the Storage interface on an embedded SQLite
// database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database, applies pool settings and creates the
// schema if it is missing.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Links returns all saved links, oldest first
func (ss *SQLiteStorage) Links(ctx context.Context) ([]*models.VoucherLink, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, encrypted_url, fingerprint, created_at FROM voucher_links ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.VoucherLink, 0)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
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

// GetLink retrieves a link by its ID
func (ss *SQLiteStorage) GetLink(ctx context.Context, id string) (*models.VoucherLink, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, encrypted_url, fingerprint, created_at FROM voucher_links WHERE id = ?`, id)
	return ss.scanOne(row)
}

// GetLinkByFingerprint retrieves a link by the fingerprint of its URL
func (ss *SQLiteStorage) GetLinkByFingerprint(ctx context.Context, fingerprint string) (*models.VoucherLink, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, encrypted_url, fingerprint, created_at FROM voucher_links WHERE fingerprint = ?`, fingerprint)
	return ss.scanOne(row)
}

func (ss *SQLiteStorage) scanOne(row *sql.Row) (*models.VoucherLink, error) {
	link, err := scanSQLiteLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// CreateLink stores a new link
func (ss *SQLiteStorage) CreateLink(ctx context.Context, link *models.VoucherLink) error {
	res, err := ss.db.ExecContext(ctx,
		`INSERT INTO voucher_links (id, encrypted_url, fingerprint, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		link.ID, link.EncryptedURL, link.Fingerprint, toUnixNano(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// DeleteLink removes a link by its ID
func (ss *SQLiteStorage) DeleteLink(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM voucher_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

var _ Storage = (*SQLiteStorage)(nil)
