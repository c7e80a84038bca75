// internal/service/promo/domain/event.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType 是促销事件的类型。
type EventType string

const (
	EventPromoCreated EventType = "PROMO_CREATED"
	EventPromoUpdated EventType = "PROMO_UPDATED"
	EventPromoDeleted EventType = "PROMO_DELETED"
)

// PromoEvent 是每次提交成功的变更对外发布的事实，发布后不可变。
type PromoEvent struct {
	EventID    string    `json:"eventId"`
	EventType  EventType `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    Payload   `json:"payload"`
}

// Payload 是变更时刻的促销快照。
// Description 字段承载的是"为什么发出这个事件"的说明文字：
// API 写入路径传促销自身的描述，调度器传流转原因（如 "Promo ended"）。
type Payload struct {
	PromoID         string     `json:"promoId"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DiscountPercent int        `json:"discountPercent"`
	ItemIDs         []string   `json:"itemIds"`
	Status          Status     `json:"status"`
	StartsAt        time.Time  `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Timestamp       time.Time  `json:"timestamp"`
}

// NewPromoEvent 从变更后的快照构造事件。
func NewPromoEvent(promo *Promo, eventType EventType, description string) *PromoEvent {
	now := time.Now().UTC()
	return &PromoEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: now,
		Payload: Payload{
			PromoID:         promo.ID,
			Name:            promo.Name,
			Description:     description,
			DiscountPercent: promo.DiscountPercent,
			ItemIDs:         promo.ItemIDs,
			Status:          promo.Status,
			StartsAt:        promo.StartsAt,
			EndsAt:          promo.EndsAt,
			CreatedAt:       promo.CreatedAt,
			UpdatedAt:       promo.UpdatedAt,
			Timestamp:       now,
		},
	}
}
