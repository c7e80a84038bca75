// internal/service/promo/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"promohub/internal/service/promo/domain"
)

// 调度器只关心这两个状态，PAUSED 和 DELETED 被状态过滤排除在自动流转之外。
var schedulableStatuses = []string{
	string(domain.StatusEnabled),
	string(domain.StatusPending),
}

// GormPromoRepository 是 domain.PromoRepository 的 GORM 实现。
// 条件写通过 WHERE id = ? AND version = ? 加 RowsAffected 检查实现，
// 没有命中期望版本时上报 domain.ErrVersionConflict。
type GormPromoRepository struct {
	db *gorm.DB
}

func NewGormPromoRepository(db *gorm.DB) *GormPromoRepository {
	return &GormPromoRepository{db: db}
}

// AutoMigrate 建表，进程启动时调用。
func (r *GormPromoRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&PromoModel{})
}

func (r *GormPromoRepository) Insert(ctx context.Context, promo *domain.Promo) error {
	model, err := FromDomainPromo(promo)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "failed to insert promo %s", promo.ID)
	}
	return nil
}

func (r *GormPromoRepository) FindByID(ctx context.Context, id string) (*domain.Promo, error) {
	var model PromoModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPromoNotFound
		}
		return nil, errors.Wrapf(err, "failed to find promo %s", id)
	}
	return ToDomainPromo(&model)
}

func (r *GormPromoRepository) FindPage(ctx context.Context, page, size int) ([]*domain.Promo, error) {
	var models []*PromoModel
	err := r.db.WithContext(ctx).
		Order("created_at").
		Offset(page * size).
		Limit(size).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list promos")
	}
	return toDomainPromos(models)
}

// UpdateWithVersion 实现条件更新。过滤条件同时匹配 id 和期望版本，
// 更新集把 version 置为 expectedVersion+1，保证版本每次提交严格加一。
func (r *GormPromoRepository) UpdateWithVersion(ctx context.Context, expectedVersion int64, promo *domain.Promo) (*domain.Promo, error) {
	model, err := FromDomainPromo(promo)
	if err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).
		Model(&PromoModel{}).
		Where("id = ? AND version = ?", promo.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":             model.Name,
			"description":      model.Description,
			"discount_percent": model.DiscountPercent,
			"item_ids":         model.ItemIDs,
			"status":           model.Status,
			"starts_at":        model.StartsAt,
			"ends_at":          model.EndsAt,
			"updated_at":       model.UpdatedAt,
			"version":          expectedVersion + 1,
		})
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to update promo %s", promo.ID)
	}
	if res.RowsAffected == 0 {
		// 记录不存在和版本不匹配在这里无法区分，调用方靠先前的读来区分。
		return nil, domain.ErrVersionConflict
	}

	return r.FindByID(ctx, promo.ID)
}

// DeleteWithVersion 条件物理删除。
func (r *GormPromoRepository) DeleteWithVersion(ctx context.Context, id string, expectedVersion int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", id, expectedVersion).
		Delete(&PromoModel{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete promo %s", id)
	}
	if res.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *GormPromoRepository) FindDueToStart(ctx context.Context, now time.Time) ([]*domain.Promo, error) {
	var models []*PromoModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", schedulableStatuses).
		Where("starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at > ?", now).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query promos due to start")
	}
	return toDomainPromos(models)
}

func (r *GormPromoRepository) FindDueToEnd(ctx context.Context, now time.Time) ([]*domain.Promo, error) {
	var models []*PromoModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", schedulableStatuses).
		Where("ends_at IS NOT NULL AND ends_at <= ?", now).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query promos due to end")
	}
	return toDomainPromos(models)
}

// WithinTx 在数据库事务里执行 fn，fn 拿到的是绑定事务的仓储实例。
func (r *GormPromoRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo domain.PromoRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormPromoRepository{db: tx})
	})
}

func toDomainPromos(models []*PromoModel) ([]*domain.Promo, error) {
	promos := make([]*domain.Promo, 0, len(models))
	for _, m := range models {
		p, err := ToDomainPromo(m)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, nil
}
