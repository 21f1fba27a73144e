package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VoucherLink is a saved voucher link as persisted. The URL itself is only
// ever stored sealed; Fingerprint is a keyed hash of the plaintext URL used
// to reject duplicates without decrypting every record.
type VoucherLink struct {
	ID           string    `json:"id"`
	EncryptedURL string    `json:"encrypted_url"`
	Fingerprint  string    `json:"fingerprint"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the persisted shape of a link.
func (l *VoucherLink) Validate() error {
	if err := ValidateLinkID(l.ID); err != nil {
		return err
	}
	if l.EncryptedURL == "" {
		return errors.New("encrypted URL cannot be empty")
	}
	if l.Fingerprint == "" {
		return errors.New("fingerprint cannot be empty")
	}
	if l.CreatedAt.IsZero() {
		return errors.New("created at cannot be zero")
	}
	return nil
}

// LinkView is a decrypted link as returned to API clients.
type LinkView struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	VoucherID string    `json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AddLinkRequest is the body of POST /api/v1/links.
type AddLinkRequest struct {
	URL string `json:"url"`
}

var ErrInvalidLinkID = errors.New("link ID must be a UUID")

// ValidateLinkID checks that id is a canonical UUID.
func ValidateLinkID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return ErrInvalidLinkID
	}
	return nil
}
