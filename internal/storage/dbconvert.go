package storage

import (
	"sort"
	"time"

	"voucherwatch/internal/models"
)

// toUnixNano converts a creation time to the integer form stored by SQLite.
// Integers keep ORDER BY created_at chronological without relying on string
// layout.
func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// fromUnixNano converts a stored SQLite timestamp back to UTC.
func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteLink reads id, encrypted_url, fingerprint, created_at.
func scanSQLiteLink(row rowScanner) (*models.VoucherLink, error) {
	var link models.VoucherLink
	var createdAt int64
	if err := row.Scan(&link.ID, &link.EncryptedURL, &link.Fingerprint, &createdAt); err != nil {
		return nil, err
	}
	link.CreatedAt = fromUnixNano(createdAt)
	return &link, nil
}

// scanPostgresLink reads id, encrypted_url, fingerprint, created_at.
func scanPostgresLink(row rowScanner) (*models.VoucherLink, error) {
	var link models.VoucherLink
	if err := row.Scan(&link.ID, &link.EncryptedURL, &link.Fingerprint, &link.CreatedAt); err != nil {
		return nil, err
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return &link, nil
}

// sortLinks orders links by creation time, breaking ties by ID.
func sortLinks(links []*models.VoucherLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID < links[j].ID
		}
		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})
}
