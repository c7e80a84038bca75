// internal/service/promo/infrastructure/gorm_model.go
package infrastructure

import (
	"time"
)

// PromoModel 是 Promo 领域对象在数据库中的表示。
// version 列就是乐观锁令牌，所有条件写都以 (id, version) 为过滤条件。
type PromoModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	Name            string `gorm:"size:255;not null"`
	Description     string `gorm:"type:text"`
	DiscountPercent int
	ItemIDs         string `gorm:"column:item_ids;type:json"`
	Status          string `gorm:"size:16;index:idx_promos_window,priority:1"`
	StartsAt        time.Time  `gorm:"index:idx_promos_window,priority:2"`
	EndsAt          *time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64 `gorm:"not null;default:0"`
}

// TableName 指定 GORM 应该使用的表名
func (PromoModel) TableName() string {
	return "promos"
}
