// internal/service/promo/domain/promo_test.go
package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPromo() Promo {
	return Promo{
		Name:            "Summer Sale",
		Description:     "Summer discount campaign",
		DiscountPercent: 20,
		ItemIDs:         []string{"item-1", "item-2"},
		Status:          StatusEnabled,
		StartsAt:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewPromo(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	p, err := NewPromo(validPromo(), now)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID, "missing id should be generated")
	assert.Equal(t, int64(0), p.Version)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestNewPromoKeepsProvidedID(t *testing.T) {
	input := validPromo()
	input.ID = "promo-42"

	p, err := NewPromo(input, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "promo-42", p.ID)
}

func TestNewPromoValidation(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name   string
		mutate func(*Promo)
	}{
		{"missing name", func(p *Promo) { p.Name = "" }},
		{"no items", func(p *Promo) { p.ItemIDs = nil }},
		{"missing status", func(p *Promo) { p.Status = "" }},
		{"unknown status", func(p *Promo) { p.Status = "ARCHIVED" }},
		{"missing start time", func(p *Promo) { p.StartsAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validPromo()
			tt.mutate(&input)

			_, err := NewPromo(input, now)
			assert.ErrorIs(t, err, ErrInvalidPromo)
		})
	}
}

func TestApplyUpdatePreservesIdentity(t *testing.T) {
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	p, err := NewPromo(validPromo(), created)
	require.NoError(t, err)
	p.Version = 3

	next := validPromo()
	next.ID = "attacker-controlled"
	next.Name = "Renamed Sale"
	next.DiscountPercent = 50

	require.NoError(t, p.ApplyUpdate(next, updated))

	assert.NotEqual(t, "attacker-controlled", p.ID, "id must not change on update")
	assert.Equal(t, "Renamed Sale", p.Name)
	assert.Equal(t, 50, p.DiscountPercent)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, updated, p.UpdatedAt)
	assert.Equal(t, int64(3), p.Version, "version is managed by the store, not by updates")
}

func TestApplyUpdateRejectsInvalid(t *testing.T) {
	p, err := NewPromo(validPromo(), time.Now().UTC())
	require.NoError(t, err)

	bad := validPromo()
	bad.ItemIDs = nil
	assert.ErrorIs(t, p.ApplyUpdate(bad, time.Now().UTC()), ErrInvalidPromo)
	assert.NotEmpty(t, p.ItemIDs, "failed update must not partially apply")
}

func TestCloneIsDeep(t *testing.T) {
	endsAt := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	input := validPromo()
	input.EndsAt = &endsAt

	p, err := NewPromo(input, time.Now().UTC())
	require.NoError(t, err)

	c := p.Clone()
	c.ItemIDs[0] = "mutated"
	*c.EndsAt = endsAt.Add(time.Hour)
	c.Transition(StatusEnded, time.Now().UTC())

	assert.Equal(t, "item-1", p.ItemIDs[0])
	assert.Equal(t, endsAt, *p.EndsAt)
	assert.Equal(t, StatusEnabled, p.Status)
}
