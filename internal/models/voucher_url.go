package models

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// VoucherHost is the only host accepted for saved voucher links.
const VoucherHost = "voucher.redeem.gov.sg"

// SanitizedVoucherURL replaces voucher URLs in logs.
const SanitizedVoucherURL = "https://" + VoucherHost + "/:id"

var (
	ErrInvalidVoucherURL = errors.New("invalid CDC voucher URL")
	ErrInvalidVoucherID  = errors.New("invalid voucher ID")
)

var (
	voucherIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	voucherURLLogPattern = regexp.MustCompile(`^https://voucher\.redeem\.gov\.sg/[A-Za-z0-9_-]+(\?.*)?$`)
)

// ParseVoucherURL validates a CDC voucher link and returns its voucher ID.
// The URL must use https, point at VoucherHost and have exactly one
// non-empty path segment. The segment must itself be a valid voucher ID.
func ParseVoucherURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: URL is required", ErrInvalidVoucherURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVoucherURL, err)
	}

	if u.Scheme != "https" || u.Hostname() != VoucherHost || u.Port() != "" || u.User != nil {
		return "", fmt.Errorf("%w: URL must start with https://%s", ErrInvalidVoucherURL, VoucherHost)
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 1 {
		return "", fmt.Errorf("%w: expected exactly one path segment", ErrInvalidVoucherURL)
	}

	if err := ValidateVoucherID(parts[0]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVoucherURL, err)
	}

	return parts[0], nil
}

// ValidateVoucherID checks that id is a non-empty alphanumeric string.
func ValidateVoucherID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ID is required", ErrInvalidVoucherID)
	}
	if !voucherIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be alphanumeric", ErrInvalidVoucherID)
	}
	return nil
}

// SanitizeVoucherURL hides the voucher ID in a voucher link so it can be
// logged. Anything that is not a voucher link is returned unchanged.
func SanitizeVoucherURL(s string) string {
	if voucherURLLogPattern.MatchString(s) {
		return SanitizedVoucherURL
	}
	return s
}
