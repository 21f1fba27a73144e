package links

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voucherwatch/internal/cache"
	"voucherwatch/internal/cdc"
	"voucherwatch/internal/models"
	"voucherwatch/internal/secure"
	"voucherwatch/internal/storage"
)

const testVoucherURL = "https://voucher.redeem.gov.sg/abc123"

// MockFetcher implements cdc.Fetcher for testing
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchVoucherGroup(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	args := m.Called(ctx, voucherID)
	if data := args.Get(0); data != nil {
		return data.(*models.VoucherData), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleVoucherData() *models.VoucherData {
	return &models.VoucherData{
		Campaign: models.Campaign{
			Name:        "CDC Vouchers 2025",
			Description: "Community Development Council vouchers",
			ValidityEnd: "2025-12-31T15:59:59.999Z",
			Category:    "cdc",
		},
		Data: models.VoucherGroupData{
			Vouchers: []models.Voucher{
				{ID: "v1", State: models.VoucherStateUnused, VoucherValue: 2, Type: models.VoucherTypeHeartland},
				{ID: "v2", State: models.VoucherStateRedeemed, VoucherValue: 2, Type: models.VoucherTypeHeartland},
				{ID: "v3", State: models.VoucherStateUnused, VoucherValue: 10, Type: models.VoucherTypeSupermarket},
			},
		},
	}
}

type testEnv struct {
	service *Service
	store   storage.Storage
	fetcher *MockFetcher
	cache   *cache.MemoryCache
	sealer  *secure.Sealer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := secure.GenerateKey()
	require.NoError(t, err)
	sealer, err := secure.NewSealer(key)
	require.NoError(t, err)

	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	fetcher := &MockFetcher{}
	c := cache.NewMemoryCache(100)

	return &testEnv{
		service: NewService(store, fetcher, c, sealer, time.Minute),
		store:   store,
		fetcher: fetcher,
		cache:   c,
		sealer:  sealer,
	}
}

func assertServiceError(t *testing.T, err error, code string, status int) *ServiceError {
	t.Helper()
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, code, svcErr.Code)
	assert.Equal(t, status, svcErr.StatusCode)
	return svcErr
}

func TestAddLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(sampleVoucherData(), nil).Once()

	resp, err := env.service.AddLink(ctx, "  "+testVoucherURL+"  ")
	require.NoError(t, err)

	assert.Equal(t, testVoucherURL, resp.Link.URL)
	assert.Equal(t, "abc123", resp.Link.VoucherID)
	assert.NoError(t, models.ValidateLinkID(resp.Link.ID))
	assert.False(t, resp.Link.CreatedAt.IsZero())
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "2025-12-31", resp.Summary.ValidityEnd)
	assert.Equal(t, 2, resp.Summary.Heartland.UnusedValue)

	stored, err := env.store.GetLink(ctx, resp.Link.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.EncryptedURL, "abc123", "URL must be stored encrypted")
	plain, err := env.sealer.Decrypt(stored.EncryptedURL)
	require.NoError(t, err)
	assert.Equal(t, testVoucherURL, plain)

	_, ok, err := env.cache.Get(ctx, cache.VoucherKey("abc123"))
	require.NoError(t, err)
	assert.True(t, ok, "voucher data should be pre-cached")

	env.fetcher.AssertExpectations(t)
}

func TestAddLink_InvalidURL(t *testing.T) {
	env := newTestEnv(t)

	tests := []string{
		"",
		"http://voucher.redeem.gov.sg/abc123",
		"https://example.com/abc123",
		"https://voucher.redeem.gov.sg/",
		"https://voucher.redeem.gov.sg/a/b",
		"https://voucher.redeem.gov.sg/abc-123",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := env.service.AddLink(context.Background(), raw)
			svcErr := assertServiceError(t, err, models.ErrorCodeInvalidURL, http.StatusBadRequest)
			assert.ErrorIs(t, svcErr, models.ErrInvalidVoucherURL)
		})
	}

	env.fetcher.AssertNotCalled(t, "FetchVoucherGroup", mock.Anything, mock.Anything)
}

func TestAddLink_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(sampleVoucherData(), nil).Once()

	_, err := env.service.AddLink(ctx, testVoucherURL)
	require.NoError(t, err)

	_, err = env.service.AddLink(ctx, testVoucherURL)
	svcErr := assertServiceError(t, err, models.ErrorCodeLinkExists, http.StatusConflict)
	assert.Equal(t, "Link already exists", svcErr.Message)

	list, err := env.service.ListLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalCount)
	env.fetcher.AssertExpectations(t)
}

func TestAddLink_UpstreamFailureDoesNotSave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	upstreamErr := &cdc.UpstreamError{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"}
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(nil, upstreamErr).Once()

	_, err := env.service.AddLink(ctx, testVoucherURL)
	svcErr := assertServiceError(t, err, models.ErrorCodeUpstreamError, http.StatusBadGateway)
	assert.Contains(t, svcErr.Message, "Unable to load voucher details")

	links, err := env.store.Links(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestListLinks_OrderedAndSkipsUnreadable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fetcher.On("FetchVoucherGroup", mock.Anything, mock.Anything).Return(sampleVoucherData(), nil)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	env.service.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := env.service.AddLink(ctx, "https://voucher.redeem.gov.sg/first")
	require.NoError(t, err)
	second, err := env.service.AddLink(ctx, "https://voucher.redeem.gov.sg/second")
	require.NoError(t, err)

	require.NoError(t, env.store.CreateLink(ctx, &models.VoucherLink{
		ID:           "00000000-0000-4000-8000-000000000000",
		EncryptedURL: "not:valid:ciphertext",
		Fingerprint:  "broken",
		CreatedAt:    base,
	}))

	list, err := env.service.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, list.Links, 2)
	assert.Equal(t, 2, list.TotalCount)
	assert.Equal(t, first.Link.ID, list.Links[0].ID)
	assert.Equal(t, second.Link.ID, list.Links[1].ID)
	assert.Equal(t, "second", list.Links[1].VoucherID)
}

func TestListLinks_Empty(t *testing.T) {
	env := newTestEnv(t)

	list, err := env.service.ListLinks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list.Links)
	assert.Empty(t, list.Links)
	assert.Equal(t, 0, list.TotalCount)
}

func TestDeleteLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(sampleVoucherData(), nil).Once()

	added, err := env.service.AddLink(ctx, testVoucherURL)
	require.NoError(t, err)

	resp, err := env.service.DeleteLink(ctx, added.Link.ID)
	require.NoError(t, err)
	assert.Equal(t, added.Link.ID, resp.ID)

	_, err = env.store.GetLink(ctx, added.Link.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, ok, err := env.cache.Get(ctx, cache.VoucherKey("abc123"))
	require.NoError(t, err)
	assert.False(t, ok, "cached voucher data should be removed with the link")
}

func TestDeleteLink_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.DeleteLink(ctx, "not-a-uuid")
	assertServiceError(t, err, models.ErrorCodeInvalidLinkID, http.StatusBadRequest)

	_, err = env.service.DeleteLink(ctx, "9b2f7c1e-3a4d-4e5f-8a6b-7c8d9e0f1a2b")
	svcErr := assertServiceError(t, err, models.ErrorCodeLinkNotFound, http.StatusNotFound)
	assert.Equal(t, "Link not found", svcErr.Message)
}

func TestLinkSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(sampleVoucherData(), nil).Once()

	added, err := env.service.AddLink(ctx, testVoucherURL)
	require.NoError(t, err)

	resp, err := env.service.LinkSummary(ctx, added.Link.ID)
	require.NoError(t, err)
	assert.Equal(t, added.Link.ID, resp.Link.ID)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 10, resp.Summary.Supermarket.TotalValue)

	// Served from the cache populated by AddLink.
	env.fetcher.AssertNumberOfCalls(t, "FetchVoucherGroup", 1)

	_, err = env.service.LinkSummary(ctx, "6f1c2d3e-4b5a-4c6d-9e8f-0a1b2c3d4e5f")
	assertServiceError(t, err, models.ErrorCodeLinkNotFound, http.StatusNotFound)
}

func TestVoucherData_CachesUpstream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(sampleVoucherData(), nil).Once()

	first, err := env.service.VoucherData(ctx, "abc123")
	require.NoError(t, err)
	second, err := env.service.VoucherData(ctx, "abc123")
	require.NoError(t, err)

	assert.Equal(t, first.Campaign.Name, second.Campaign.Name)
	env.fetcher.AssertNumberOfCalls(t, "FetchVoucherGroup", 1)
}

func TestVoucherData_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.VoucherData(ctx, "bad-id")
	assertServiceError(t, err, models.ErrorCodeInvalidVoucherID, http.StatusBadRequest)

	notFound := &cdc.UpstreamError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "missing").Return(nil, notFound).Once()
	_, err = env.service.VoucherData(ctx, "missing")
	svcErr := assertServiceError(t, err, models.ErrorCodeVoucherNotFound, http.StatusNotFound)
	assert.ErrorIs(t, svcErr, cdc.ErrVoucherNotFound)

	env.fetcher.On("FetchVoucherGroup", mock.Anything, "down").Return(nil, errors.New("connection refused")).Once()
	_, err = env.service.VoucherData(ctx, "down")
	assertServiceError(t, err, models.ErrorCodeUpstreamError, http.StatusBadGateway)

	_, ok, err := env.cache.Get(ctx, cache.VoucherKey("down"))
	require.NoError(t, err)
	assert.False(t, ok, "failures must not be cached")
}

func TestVoucherSummary(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.On("FetchVoucherGroup", mock.Anything, "abc123").Return(sampleVoucherData(), nil).Once()

	summary, err := env.service.VoucherSummary(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "CDC Vouchers 2025", summary.Name)
	assert.Equal(t, map[int]models.DenominationCount{
		2: {Total: 2, Unused: 1, Redeemed: 1},
	}, summary.Heartland.Denominations)
}

// blockingFetcher holds every call until release is closed.
type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *blockingFetcher) FetchVoucherGroup(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	f.calls.Add(1)
	<-f.release
	return sampleVoucherData(), nil
}

func TestVoucherData_CollapsesConcurrentMisses(t *testing.T) {
	key, err := secure.GenerateKey()
	require.NoError(t, err)
	sealer, err := secure.NewSealer(key)
	require.NoError(t, err)
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	fetcher := &blockingFetcher{release: make(chan struct{})}
	service := NewService(store, fetcher, nil, sealer, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.VoucherData(context.Background(), "abc123")
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

// gatedFetcher blocks until released or until its context ends.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (f *gatedFetcher) FetchVoucherGroup(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	f.calls.Add(1)
	select {
	case f.started <- struct{}{}:
	default:
	}
	select {
	case <-f.release:
		return sampleVoucherData(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newGatedService(t *testing.T, fetcher cdc.Fetcher, opts ...ServiceOption) *Service {
	t.Helper()
	key, err := secure.GenerateKey()
	require.NoError(t, err)
	sealer, err := secure.NewSealer(key)
	require.NoError(t, err)
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)
	return NewService(store, fetcher, nil, sealer, time.Minute, opts...)
}

func TestVoucherData_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	fetcher := newGatedFetcher()
	service := newGatedService(t, fetcher)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := service.VoucherData(ctxA, "abc123")
		errA <- err
	}()
	<-fetcher.started

	type result struct {
		data *models.VoucherData
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := service.VoucherData(context.Background(), "abc123")
		resB <- result{data, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(fetcher.release)
	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Equal(t, "CDC Vouchers 2025", res.data.Campaign.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("live caller did not return")
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestVoucherData_SharedFetchTimeout(t *testing.T) {
	fetcher := newGatedFetcher()
	service := newGatedService(t, fetcher, WithFetchTimeout(20*time.Millisecond))

	_, err := service.VoucherData(context.Background(), "abc123")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadGateway, svcErr.StatusCode)
}
