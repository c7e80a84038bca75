// internal/service/promo/application/dto.go
package application

import (
	"time"

	"promohub/internal/service/promo/domain"
)

// PromoDto 是对外 API 的数据传输对象。
// 字段约束（折扣上下限、非空列表）在这里校验，核心只做结构性防御。
type PromoDto struct {
	ID              string            `json:"id,omitempty"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	DiscountPercent int               `json:"discountPercent"`
	ItemIDs         []string          `json:"itemIds"`
	Status          domain.Status     `json:"status"`
	StartsAt        time.Time         `json:"startsAt"`
	EndsAt          *time.Time        `json:"endsAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Version         int64             `json:"version"`
}

// Validate 返回字段名到错误信息的映射，为空表示通过。
func (d *PromoDto) Validate() map[string]string {
	errs := make(map[string]string)
	if d.Name == "" {
		errs["name"] = "Name is required"
	}
	if d.DiscountPercent < 1 {
		errs["discountPercent"] = "At least must be 1"
	} else if d.DiscountPercent > 100 {
		errs["discountPercent"] = "Max is 100"
	}
	if len(d.ItemIDs) == 0 {
		errs["itemIds"] = "At least must be one item"
	}
	if d.Status == "" {
		errs["status"] = "Status is required"
	} else if !d.Status.IsValid() {
		errs["status"] = "Invalid status value"
	}
	if d.StartsAt.IsZero() {
		errs["startsAt"] = "Start time is required"
	}
	if d.EndsAt != nil && d.EndsAt.Before(d.StartsAt) {
		errs["endsAt"] = "End time must not precede start time"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ToEntity 做纯字段映射，时间戳和版本交给核心处理。
func (d *PromoDto) ToEntity() domain.Promo {
	return domain.Promo{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		DiscountPercent: d.DiscountPercent,
		ItemIDs:         d.ItemIDs,
		Status:          d.Status,
		StartsAt:        d.StartsAt,
		EndsAt:          d.EndsAt,
	}
}

// FromEntity 将领域实体转回 DTO。
func FromEntity(p *domain.Promo) *PromoDto {
	return &PromoDto{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		DiscountPercent: p.DiscountPercent,
		ItemIDs:         p.ItemIDs,
		Status:          p.Status,
		StartsAt:        p.StartsAt,
		EndsAt:          p.EndsAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}
