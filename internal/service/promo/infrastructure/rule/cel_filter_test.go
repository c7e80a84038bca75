// internal/service/promo/infrastructure/rule/cel_filter_test.go
package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/service/promo/domain"
)

func sampleEvent() *domain.PromoEvent {
	promo := &domain.Promo{
		ID:              "p-1",
		Name:            "Summer Sale",
		DiscountPercent: 20,
		ItemIDs:         []string{"item-1", "item-2"},
		Status:          domain.StatusEnded,
		StartsAt:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	return domain.NewPromoEvent(promo, domain.EventPromoUpdated, "Promo ended")
}

func TestEventFilterMatches(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`event.eventType == "PROMO_UPDATED"`, true},
		{`event.eventType == "PROMO_DELETED"`, false},
		{`event.payload.status == "ended"`, true},
		{`"item-2" in event.payload.itemIds`, true},
		{`"item-9" in event.payload.itemIds`, false},
		{`event.payload.discountPercent >= 10.0 && event.payload.promoId == "p-1"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			filter, err := CompileEventFilter(tt.expr)
			require.NoError(t, err)

			got, err := filter.Matches(sampleEvent())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileEventFilterRejectsInvalid(t *testing.T) {
	_, err := CompileEventFilter(`event.eventType ==`)
	assert.Error(t, err)

	_, err = CompileEventFilter(`event.eventType`)
	assert.Error(t, err, "non-boolean expressions are rejected at compile time")
}
