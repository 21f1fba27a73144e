// Package links manages saved voucher links: validation, duplicate
// rejection, encryption at rest and the cached voucher data behind them.
package links

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"voucherwatch/internal/cache"
	"voucherwatch/internal/cdc"
	"voucherwatch/internal/models"
	"voucherwatch/internal/secure"
	"voucherwatch/internal/storage"
)

// DefaultFetchTimeout bounds a shared upstream fetch when no timeout is set.
const DefaultFetchTimeout = 10 * time.Second

// Service coordinates storage, the upstream client and the voucher cache.
type Service struct {
	store        storage.Storage
	fetcher      cdc.Fetcher
	cache        cache.Cache
	sealer       *secure.Sealer
	cacheTTL     time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	now          func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFetchTimeout bounds each shared upstream fetch. Non-positive values
// keep the default.
func WithFetchTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// NewService creates a links service. A nil cache disables caching.
func NewService(store storage.Storage, fetcher cdc.Fetcher, c cache.Cache, sealer *secure.Sealer, cacheTTL time.Duration, opts ...ServiceOption) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	s := &Service{
		store:        store,
		fetcher:      fetcher,
		cache:        c,
		sealer:       sealer,
		cacheTTL:     cacheTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddLink saves a voucher link. The voucher group is fetched before the link
// is stored so that links which cannot be loaded are never saved.
func (s *Service) AddLink(ctx context.Context, rawURL string) (*models.LinkResponse, error) {
	voucherID, err := models.ParseVoucherURL(rawURL)
	if err != nil {
		return nil, NewInvalidURLError(err)
	}
	url := strings.TrimSpace(rawURL)
	fingerprint := s.sealer.Fingerprint(url)

	_, err = s.store.GetLinkByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		return nil, NewLinkExistsError()
	case !errors.Is(err, storage.ErrNotFound):
		return nil, NewInternalError("Failed to check existing links", err)
	}

	data, err := s.loadVoucherData(ctx, voucherID)
	if err != nil {
		slog.Warn("Failed to load voucher details for new link",
			"url", models.SanitizeVoucherURL(url),
			"error", err)
		return nil, NewUpstreamError(err)
	}

	encrypted, err := s.sealer.Encrypt(url)
	if err != nil {
		return nil, NewInternalError("Failed to encrypt link", err)
	}

	link := &models.VoucherLink{
		ID:           uuid.NewString(),
		EncryptedURL: encrypted,
		Fingerprint:  fingerprint,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateLink(ctx, link); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, NewLinkExistsError()
		}
		return nil, NewInternalError("Failed to save link", err)
	}

	slog.Info("Link saved", "link_id", link.ID, "url", models.SanitizeVoucherURL(url))

	return &models.LinkResponse{
		Link: models.LinkView{
			ID:        link.ID,
			URL:       url,
			VoucherID: voucherID,
			CreatedAt: link.CreatedAt,
		},
		Summary: models.ProcessVoucherData(data),
	}, nil
}

// ListLinks decrypts every saved link. Records that can no longer be
// decrypted, for example after a key change, are skipped.
func (s *Service) ListLinks(ctx context.Context) (*models.ListLinksResponse, error) {
	stored, err := s.store.Links(ctx)
	if err != nil {
		return nil, NewInternalError("Failed to load links", err)
	}

	views := make([]models.LinkView, 0, len(stored))
	for _, link := range stored {
		view, err := s.view(link)
		if err != nil {
			slog.Warn("Skipping unreadable link", "link_id", link.ID, "error", err)
			continue
		}
		views = append(views, view)
	}

	return &models.ListLinksResponse{
		Links:      views,
		TotalCount: len(views),
	}, nil
}

// DeleteLink removes a link and drops the cached voucher data behind it.
func (s *Service) DeleteLink(ctx context.Context, id string) (*models.DeleteLinkResponse, error) {
	if err := models.ValidateLinkID(id); err != nil {
		return nil, NewInvalidLinkIDError(err)
	}

	link, err := s.store.GetLink(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError()
		}
		return nil, NewInternalError("Failed to load link", err)
	}

	if err := s.store.DeleteLink(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError()
		}
		return nil, NewInternalError("Failed to delete link", err)
	}

	if view, err := s.view(link); err == nil {
		if err := s.cache.Delete(ctx, cache.VoucherKey(view.VoucherID)); err != nil {
			slog.Warn("Failed to drop cached voucher data", "link_id", id, "error", err)
		}
	}

	slog.Info("Link deleted", "link_id", id)

	return &models.DeleteLinkResponse{
		ID:      id,
		Message: "Link deleted",
	}, nil
}

// LinkSummary returns a saved link together with its voucher breakdown.
func (s *Service) LinkSummary(ctx context.Context, id string) (*models.LinkResponse, error) {
	if err := models.ValidateLinkID(id); err != nil {
		return nil, NewInvalidLinkIDError(err)
	}

	link, err := s.store.GetLink(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewLinkNotFoundError()
		}
		return nil, NewInternalError("Failed to load link", err)
	}

	view, err := s.view(link)
	if err != nil {
		return nil, NewInternalError("Failed to read link", err)
	}

	data, err := s.loadVoucherData(ctx, view.VoucherID)
	if err != nil {
		return nil, fetchError(err)
	}

	return &models.LinkResponse{
		Link:    view,
		Summary: models.ProcessVoucherData(data),
	}, nil
}

// VoucherData returns the voucher group for voucherID.
func (s *Service) VoucherData(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	if err := models.ValidateVoucherID(voucherID); err != nil {
		return nil, NewInvalidVoucherIDError(err)
	}

	data, err := s.loadVoucherData(ctx, voucherID)
	if err != nil {
		return nil, fetchError(err)
	}
	return data, nil
}

// VoucherSummary returns the processed breakdown for voucherID.
func (s *Service) VoucherSummary(ctx context.Context, voucherID string) (*models.VoucherSummary, error) {
	data, err := s.VoucherData(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	return models.ProcessVoucherData(data), nil
}

// loadVoucherData serves from cache, otherwise fetches upstream. Concurrent
// misses for the same voucher share one upstream call. The shared call is
// detached from any single caller's cancellation; each caller stops waiting
// when its own context ends.
func (s *Service) loadVoucherData(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	key := cache.VoucherKey(voucherID)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("Voucher cache read failed", "error", err)
	} else if ok {
		var data models.VoucherData
		if err := json.Unmarshal(raw, &data); err == nil {
			return &data, nil
		}
		slog.Warn("Discarding unreadable cached voucher data")
	}

	results := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		data, err := s.fetcher.FetchVoucherGroup(fetchCtx, voucherID)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(data)
		if err == nil {
			err = s.cache.Set(fetchCtx, key, raw, s.cacheTTL)
		}
		if err != nil {
			slog.Warn("Voucher cache write failed", "error", err)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.VoucherData), nil
	}
}

// view decrypts a stored link into its API form.
func (s *Service) view(link *models.VoucherLink) (models.LinkView, error) {
	url, err := s.sealer.Decrypt(link.EncryptedURL)
	if err != nil {
		return models.LinkView{}, err
	}
	voucherID, err := models.ParseVoucherURL(url)
	if err != nil {
		return models.LinkView{}, err
	}
	return models.LinkView{
		ID:        link.ID,
		URL:       url,
		VoucherID: voucherID,
		CreatedAt: link.CreatedAt,
	}, nil
}

func fetchError(err error) *ServiceError {
	switch {
	case errors.Is(err, cdc.ErrVoucherNotFound):
		return NewVoucherNotFoundError(err)
	case errors.Is(err, models.ErrInvalidVoucherID):
		return NewInvalidVoucherIDError(err)
	default:
		return NewUpstreamError(err)
	}
}
