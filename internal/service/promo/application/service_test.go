// internal/service/promo/application/service_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"promohub/internal/service/promo/domain"
)

func newTestService(repo *memoryRepo, pub *capturingPublisher) *PromoService {
	coord := NewTxCoordinator(repo, pub, time.Second, otel.Tracer("test"))
	return NewPromoService(repo, coord, nil, otel.Tracer("test"))
}

func testDto() *PromoDto {
	return &PromoDto{
		Name:            "Summer Sale",
		Description:     "Summer discount campaign",
		DiscountPercent: 20,
		ItemIDs:         []string{"item-1", "item-2"},
		Status:          domain.StatusEnabled,
		StartsAt:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreatePromo(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	svc := newTestService(repo, pub)

	created, err := svc.CreatePromo(context.Background(), testDto())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(0), created.Version)
	assert.False(t, created.CreatedAt.IsZero())

	events := pub.committedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventPromoCreated, events[0].EventType)
	assert.Equal(t, created.ID, events[0].Payload.PromoID)
	assert.Equal(t, "Summer discount campaign", events[0].Payload.Description,
		"api events carry the promo's own description")
}

func TestUpdatePromoBumpsVersion(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	svc := newTestService(repo, pub)

	created, err := svc.CreatePromo(context.Background(), testDto())
	require.NoError(t, err)

	dto := testDto()
	dto.Name = "Renamed Sale"
	updated, err := svc.UpdatePromo(context.Background(), created.ID, dto)
	require.NoError(t, err)

	assert.Equal(t, "Renamed Sale", updated.Name)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	events := pub.committedEvents()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPromoUpdated, events[1].EventType)
}

func TestUpdatePromoNotFound(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	svc := newTestService(repo, pub)

	_, err := svc.UpdatePromo(context.Background(), "missing", testDto())
	assert.ErrorIs(t, err, domain.ErrPromoNotFound)
	assert.Empty(t, pub.committedEvents())
}

func TestDeletePromoEmitsDeletedSnapshot(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	svc := newTestService(repo, pub)

	created, err := svc.CreatePromo(context.Background(), testDto())
	require.NoError(t, err)

	require.NoError(t, svc.DeletePromo(context.Background(), created.ID))
	assert.Nil(t, repo.get(created.ID), "record is physically removed")

	events := pub.committedEvents()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPromoDeleted, events[1].EventType)
	assert.Equal(t, domain.StatusDeleted, events[1].Payload.Status,
		"the snapshot reflects the deletion even though the row is gone")

	err = svc.DeletePromo(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrPromoNotFound)
	assert.Len(t, pub.committedEvents(), 2, "deleting a missing promo emits nothing")
}

func TestGetPromoUsesCache(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	coord := NewTxCoordinator(repo, pub, time.Second, otel.Tracer("test"))
	cache := &stubCache{entries: make(map[string]*domain.Promo)}
	svc := NewPromoService(repo, coord, cache, otel.Tracer("test"))

	created, err := svc.CreatePromo(context.Background(), testDto())
	require.NoError(t, err)
	require.Contains(t, cache.entries, created.ID, "create warms the cache")

	// 从存储里删掉，但缓存还在：命中缓存时不会察觉
	repo.mu.Lock()
	delete(repo.promos, created.ID)
	repo.mu.Unlock()

	got, err := svc.GetPromoByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

// 存储已提交但事件发布失败时，缓存里的旧快照必须失效，
// 后续读取要能看到已经落盘的新版本。
func TestUpdateFailedPublishInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	coord := NewTxCoordinator(repo, pub, time.Second, otel.Tracer("test"))
	cache := &stubCache{entries: make(map[string]*domain.Promo)}
	svc := NewPromoService(repo, coord, cache, otel.Tracer("test"))

	created, err := svc.CreatePromo(context.Background(), testDto())
	require.NoError(t, err)
	require.Contains(t, cache.entries, created.ID)

	pub.commitErr = assert.AnError

	dto := testDto()
	dto.Name = "Renamed Sale"
	_, err = svc.UpdatePromo(context.Background(), created.ID, dto)
	var tf *domain.TransactionFailedError
	require.ErrorAs(t, err, &tf)
	require.True(t, tf.StoreCommitted)

	assert.NotContains(t, cache.entries, created.ID, "stale snapshot must not outlive the committed write")

	got, err := svc.GetPromoByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Sale", got.Name)
	assert.Equal(t, int64(1), got.Version)
}

func TestDeleteFailedPublishInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	coord := NewTxCoordinator(repo, pub, time.Second, otel.Tracer("test"))
	cache := &stubCache{entries: make(map[string]*domain.Promo)}
	svc := NewPromoService(repo, coord, cache, otel.Tracer("test"))

	created, err := svc.CreatePromo(context.Background(), testDto())
	require.NoError(t, err)

	pub.commitErr = assert.AnError

	err = svc.DeletePromo(context.Background(), created.ID)
	var tf *domain.TransactionFailedError
	require.ErrorAs(t, err, &tf)
	require.True(t, tf.StoreCommitted)

	assert.NotContains(t, cache.entries, created.ID)

	_, err = svc.GetPromoByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, domain.ErrPromoNotFound, "the row is gone and the cache must agree")
}

func TestListPromos(t *testing.T) {
	repo := newMemoryRepo()
	pub := &capturingPublisher{}
	svc := newTestService(repo, pub)

	for i := 0; i < 3; i++ {
		_, err := svc.CreatePromo(context.Background(), testDto())
		require.NoError(t, err)
	}

	page, err := svc.ListPromos(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := svc.ListPromos(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

// stubCache 是一个不会失败的内存缓存。
type stubCache struct {
	entries map[string]*domain.Promo
}

func (c *stubCache) Get(ctx context.Context, id string) (*domain.Promo, error) {
	if p, ok := c.entries[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (c *stubCache) Set(ctx context.Context, promo *domain.Promo) error {
	c.entries[promo.ID] = promo.Clone()
	return nil
}

func (c *stubCache) Invalidate(ctx context.Context, id string) error {
	delete(c.entries, id)
	return nil
}
