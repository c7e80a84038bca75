// internal/service/promo/infrastructure/mapper_test.go
package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/service/promo/domain"
)

func TestPromoMapperRoundTrip(t *testing.T) {
	endsAt := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	promo := &domain.Promo{
		ID:              "p-1",
		Name:            "Summer Sale",
		Description:     "Summer discount campaign",
		DiscountPercent: 20,
		ItemIDs:         []string{"item-1", "item-2"},
		Status:          domain.StatusEnabled,
		StartsAt:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:          &endsAt,
		CreatedAt:       time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		Version:         7,
	}

	model, err := FromDomainPromo(promo)
	require.NoError(t, err)
	assert.Equal(t, `["item-1","item-2"]`, model.ItemIDs)
	assert.Equal(t, "ENABLED", model.Status, "the store keeps the uppercase form")

	back, err := ToDomainPromo(model)
	require.NoError(t, err)
	assert.Equal(t, promo, back)
}

func TestToDomainPromoEmptyItemIDs(t *testing.T) {
	back, err := ToDomainPromo(&PromoModel{ID: "p-1", ItemIDs: ""})
	require.NoError(t, err)
	assert.Empty(t, back.ItemIDs)
}

func TestToDomainPromoCorruptItemIDs(t *testing.T) {
	_, err := ToDomainPromo(&PromoModel{ID: "p-1", ItemIDs: "{not json"})
	assert.Error(t, err)
}

func TestMapperNilSafety(t *testing.T) {
	model, err := FromDomainPromo(nil)
	require.NoError(t, err)
	assert.Nil(t, model)

	promo, err := ToDomainPromo(nil)
	require.NoError(t, err)
	assert.Nil(t, promo)
}
