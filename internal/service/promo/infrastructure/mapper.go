// internal/service/promo/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"github.com/pkg/errors"

	"promohub/internal/service/promo/domain"
)

// ToDomainPromo 将数据库模型转换为领域模型
func ToDomainPromo(model *PromoModel) (*domain.Promo, error) {
	if model == nil {
		return nil, nil
	}

	var itemIDs []string
	if model.ItemIDs != "" {
		if err := json.Unmarshal([]byte(model.ItemIDs), &itemIDs); err != nil {
			return nil, errors.Wrapf(err, "corrupt item_ids column for promo %s", model.ID)
		}
	}

	return &domain.Promo{
		ID:              model.ID,
		Name:            model.Name,
		Description:     model.Description,
		DiscountPercent: model.DiscountPercent,
		ItemIDs:         itemIDs,
		Status:          domain.Status(model.Status),
		StartsAt:        model.StartsAt,
		EndsAt:          model.EndsAt,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		Version:         model.Version,
	}, nil
}

// FromDomainPromo 将领域模型转换为数据库模型
func FromDomainPromo(promo *domain.Promo) (*PromoModel, error) {
	if promo == nil {
		return nil, nil
	}

	itemIDs, err := json.Marshal(promo.ItemIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode item ids")
	}

	return &PromoModel{
		ID:              promo.ID,
		Name:            promo.Name,
		Description:     promo.Description,
		DiscountPercent: promo.DiscountPercent,
		ItemIDs:         string(itemIDs),
		Status:          string(promo.Status),
		StartsAt:        promo.StartsAt,
		EndsAt:          promo.EndsAt,
		CreatedAt:       promo.CreatedAt,
		UpdatedAt:       promo.UpdatedAt,
		Version:         promo.Version,
	}, nil
}
