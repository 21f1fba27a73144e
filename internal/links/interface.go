package links

import (
	"context"

	"voucherwatch/internal/models"
)

// ServiceInterface defines the operations the HTTP layer needs from the links service
type ServiceInterface interface {
	// AddLink validates, fetches and stores a voucher link
	AddLink(ctx context.Context, rawURL string) (*models.LinkResponse, error)

	// ListLinks returns every saved link, oldest first
	ListLinks(ctx context.Context) (*models.ListLinksResponse, error)

	// DeleteLink removes a saved link and its cached voucher data
	DeleteLink(ctx context.Context, id string) (*models.DeleteLinkResponse, error)

	// LinkSummary returns the breakdown for a saved link
	LinkSummary(ctx context.Context, id string) (*models.LinkResponse, error)

	// VoucherData returns the raw voucher group, from cache when possible
	VoucherData(ctx context.Context, voucherID string) (*models.VoucherData, error)

	// VoucherSummary returns the breakdown for a voucher group
	VoucherSummary(ctx context.Context, voucherID string) (*models.VoucherSummary, error)
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
