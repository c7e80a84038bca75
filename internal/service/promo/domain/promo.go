// internal/service/promo/domain/promo.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Promo 是促销活动聚合的根实体。
// Version 是乐观锁令牌：创建时为 0，每次成功写入严格加一。
type Promo struct {
	ID              string
	Name            string
	Description     string
	DiscountPercent int
	ItemIDs         []string
	Status          Status
	StartsAt        time.Time
	EndsAt          *time.Time // 可以为空，表示不限期
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// NewPromo 是创建新促销的工厂函数。ID 缺省时生成 UUID，版本从 0 开始，
// createdAt/updatedAt 由核心设置，不信任调用方传入的值。
func NewPromo(p Promo, now time.Time) (*Promo, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Version = 0
	p.CreatedAt = now
	p.UpdatedAt = now
	return &p, nil
}

// validate 做结构性的防御校验。字段取值范围（折扣上下限等）属于 API 边界的职责。
func (p *Promo) validate() error {
	if p.Name == "" {
		return invalidPromo("name is required")
	}
	if len(p.ItemIDs) == 0 {
		return invalidPromo("at least one item id is required")
	}
	if !p.Status.IsValid() {
		return invalidPromo("status is required")
	}
	if p.StartsAt.IsZero() {
		return invalidPromo("start time is required")
	}
	return nil
}

// ApplyUpdate 将一次全量更新叠加到既有实体上。
// ID、createdAt 和版本号保持原值，updatedAt 由核心设置。
func (p *Promo) ApplyUpdate(updated Promo, now time.Time) error {
	if err := updated.validate(); err != nil {
		return err
	}
	p.Name = updated.Name
	p.Description = updated.Description
	p.DiscountPercent = updated.DiscountPercent
	p.ItemIDs = updated.ItemIDs
	p.Status = updated.Status
	p.StartsAt = updated.StartsAt
	p.EndsAt = updated.EndsAt
	p.UpdatedAt = now
	return nil
}

// Transition 调度器用的状态流转：只改状态和 updatedAt。
func (p *Promo) Transition(status Status, now time.Time) {
	p.Status = status
	p.UpdatedAt = now
}

// Clone 返回一个深拷贝，调度器在条件写之前用它构造新字段集，避免污染读到的快照。
func (p *Promo) Clone() *Promo {
	c := *p
	c.ItemIDs = append([]string(nil), p.ItemIDs...)
	if p.EndsAt != nil {
		endsAt := *p.EndsAt
		c.EndsAt = &endsAt
	}
	return &c
}
