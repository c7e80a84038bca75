// internal/service/promo/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"promohub/internal/pkg/logger"
	"promohub/internal/service/promo/domain"
)

// PromoService 是暴露给接口层的门面，组合乐观锁协议和事务协调器。
// cache 可以为 nil，此时读路径直接打到存储。
type PromoService struct {
	repo        domain.PromoRepository
	coordinator *TxCoordinator
	cache       domain.PromoCache
	tracer      trace.Tracer
	clock       func() time.Time
}

func NewPromoService(repo domain.PromoRepository, coordinator *TxCoordinator, cache domain.PromoCache, tracer trace.Tracer) *PromoService {
	return &PromoService{
		repo:        repo,
		coordinator: coordinator,
		cache:       cache,
		tracer:      tracer,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// CreatePromo 新建促销：版本从 0 开始，提交成功后发布 PROMO_CREATED。
func (s *PromoService) CreatePromo(ctx context.Context, dto *PromoDto) (*PromoDto, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreatePromo")
	defer span.End()

	entity, err := domain.NewPromo(dto.ToEntity(), s.clock())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("promo.id", entity.ID))

	result, err := s.coordinator.Execute(ctx, "create", domain.EventPromoCreated, entity.Description,
		func(txCtx context.Context, repo domain.PromoRepository) (*domain.Promo, error) {
			if err := repo.Insert(txCtx, entity); err != nil {
				return nil, err
			}
			return entity, nil
		})
	if err != nil {
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	s.cacheSet(ctx, result)
	logger.Ctx(ctx).Info().Str("promo_id", result.ID).Msg("promo created")
	return FromEntity(result), nil
}

// GetPromoByID 读路径，带旁路缓存。
func (s *PromoService) GetPromoByID(ctx context.Context, id string) (*PromoDto, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetPromoByID",
		trace.WithAttributes(attribute.String("promo.id", id)))
	defer span.End()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, id); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("promo cache read failed")
		} else if cached != nil {
			span.AddEvent("cache hit")
			return FromEntity(cached), nil
		}
	}

	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.cacheSet(ctx, promo)
	return FromEntity(promo), nil
}

// ListPromos 分页列出促销。
func (s *PromoService) ListPromos(ctx context.Context, page, size int) ([]*PromoDto, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListPromos",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("size", size)))
	defer span.End()

	promos, err := s.repo.FindPage(ctx, page, size)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	dtos := make([]*PromoDto, len(promos))
	for i, p := range promos {
		dtos[i] = FromEntity(p)
	}
	return dtos, nil
}

// UpdatePromo 全量更新：先读当前版本，再走条件写。
// 读取和条件写之间被别人改过的话，条件写会以 ErrVersionConflict 失败。
func (s *PromoService) UpdatePromo(ctx context.Context, id string, dto *PromoDto) (*PromoDto, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdatePromo",
		trace.WithAttributes(attribute.String("promo.id", id)))
	defer span.End()

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	updated := existing.Clone()
	if err := updated.ApplyUpdate(dto.ToEntity(), s.clock()); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := s.coordinator.Execute(ctx, "update", domain.EventPromoUpdated, updated.Description,
		func(txCtx context.Context, repo domain.PromoRepository) (*domain.Promo, error) {
			return repo.UpdateWithVersion(txCtx, existing.Version, updated)
		})
	if err != nil {
		s.invalidateIfCommitted(ctx, id, err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}

	s.cacheInvalidate(ctx, id)
	logger.Ctx(ctx).Info().Str("promo_id", id).Int64("version", result.Version).Msg("promo updated")
	return FromEntity(result), nil
}

// DeletePromo 物理删除记录，事件快照带 DELETED 状态。
// 对不存在的 id 返回 ErrPromoNotFound，不发事件。
func (s *PromoService) DeletePromo(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "service.DeletePromo",
		trace.WithAttributes(attribute.String("promo.id", id)))
	defer span.End()

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	_, err = s.coordinator.Execute(ctx, "delete", domain.EventPromoDeleted, existing.Description,
		func(txCtx context.Context, repo domain.PromoRepository) (*domain.Promo, error) {
			if err := repo.DeleteWithVersion(txCtx, id, existing.Version); err != nil {
				return nil, err
			}
			snapshot := existing.Clone()
			snapshot.Transition(domain.StatusDeleted, s.clock())
			return snapshot, nil
		})
	if err != nil {
		s.invalidateIfCommitted(ctx, id, err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}

	s.cacheInvalidate(ctx, id)
	logger.Ctx(ctx).Info().Str("promo_id", id).Msg("promo deleted")
	return nil
}

func (s *PromoService) cacheSet(ctx context.Context, promo *domain.Promo) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, promo); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("promo_id", promo.ID).Msg("promo cache write failed")
	}
}

// invalidateIfCommitted 处理协调器失败但存储已经提交的情况：
// 此时数据库里已经是新版本，缓存里的旧快照必须立即失效，
// 不能让它在 TTL 内继续对外可见。
func (s *PromoService) invalidateIfCommitted(ctx context.Context, id string, err error) {
	var tf *domain.TransactionFailedError
	if errors.As(err, &tf) && tf.StoreCommitted {
		s.cacheInvalidate(ctx, id)
	}
}

func (s *PromoService) cacheInvalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("promo_id", id).Msg("promo cache invalidation failed")
	}
}
