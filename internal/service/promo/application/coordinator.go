// internal/service/promo/application/coordinator.go
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

// MutationFunc 在存储事务内执行带版本检查的变更，返回变更后的快照。
// 快照就是构造事件的依据。
type MutationFunc func(ctx context.Context, repo domain.PromoRepository) (*domain.Promo, error)

// TxCoordinator 把"改存储"和"发事件"编排成一个逻辑变更：
//
//  1. 开启消息事务
//  2. 在存储原生事务里执行带乐观锁的变更
//  3. 变更失败：两边都中止，错误原样上抛，不会发出任何事件
//  4. 变更成功：存储先提交，事件在仍然打开的消息事务里带超时发布
//  5. 发布或提交失败：中止消息事务，抛出 TransactionFailedError——
//     此时存储已经提交，状态和事件出现分歧，记高级别日志和指标
//
// 消息事务只保证批内原子可见，不会把原子性延伸回已提交的存储事务。
// 存储提交是唯一的事实来源，事件是它下游的尽力投递。
type TxCoordinator struct {
	repo           domain.PromoRepository
	publisher      domain.EventPublisher
	publishTimeout time.Duration
	tracer         trace.Tracer
}

func NewTxCoordinator(repo domain.PromoRepository, publisher domain.EventPublisher, publishTimeout time.Duration, tracer trace.Tracer) *TxCoordinator {
	if publishTimeout <= 0 {
		publishTimeout = 10 * time.Second
	}
	return &TxCoordinator{
		repo:           repo,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		tracer:         tracer,
	}
}

// Execute 以事务方式执行一次变更并发布对应事件。
func (c *TxCoordinator) Execute(ctx context.Context, op string, eventType domain.EventType, cause string, mutate MutationFunc) (*domain.Promo, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.Execute",
		trace.WithAttributes(attribute.String("promo.operation", op)))
	defer span.End()

	session, err := c.publisher.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin event session")
		mutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, &domain.TransactionFailedError{Op: op, Err: err}
	}

	var result *domain.Promo
	err = c.repo.WithinTx(ctx, func(txCtx context.Context, txRepo domain.PromoRepository) error {
		var mErr error
		result, mErr = mutate(txCtx, txRepo)
		return mErr
	})
	if err != nil {
		// 存储事务已回滚，消息事务也要中止，调用方不会看到任何事件。
		if abortErr := session.Abort(); abortErr != nil {
			logger.Ctx(ctx).Warn().Err(abortErr).Str("operation", op).Msg("failed to abort event session")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store mutation failed")
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrPromoNotFound) || errors.Is(err, domain.ErrInvalidPromo) {
			mutationsTotal.WithLabelValues(op, "rejected").Inc()
			return nil, err
		}
		mutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, &domain.TransactionFailedError{Op: op, Err: err}
	}

	// 存储已提交，从这里开始任何失败都意味着状态和事件分歧。
	event := domain.NewPromoEvent(result, eventType, cause)

	pubCtx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()

	if err := c.publishAndCommit(pubCtx, session, event); err != nil {
		if abortErr := session.Abort(); abortErr != nil {
			logger.Ctx(ctx).Warn().Err(abortErr).Str("operation", op).Msg("failed to abort event session")
		}
		divergenceTotal.Inc()
		publishFailuresTotal.WithLabelValues("transactional").Inc()
		logger.Ctx(ctx).Error().
			Err(err).
			Str("operation", op).
			Str("promo_id", result.ID).
			Int64("version", result.Version).
			Msg("RECONCILIATION CANDIDATE: store committed but event publish failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "event publish failed after store commit")
		mutationsTotal.WithLabelValues(op, "diverged").Inc()
		return nil, &domain.TransactionFailedError{Op: op, StoreCommitted: true, Err: err}
	}

	mutationsTotal.WithLabelValues(op, "ok").Inc()
	span.AddEvent("mutation committed and event published",
		trace.WithAttributes(attribute.String("event.id", event.EventID)))
	return result, nil
}

// ExecuteBestEffort 执行变更后只尝试一次非事务发布，发布失败记日志后吞掉。
// 仅用于下游不要求事件覆盖每次提交的路径。
func (c *TxCoordinator) ExecuteBestEffort(ctx context.Context, op string, eventType domain.EventType, cause string, mutate MutationFunc) (*domain.Promo, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.ExecuteBestEffort",
		trace.WithAttributes(attribute.String("promo.operation", op)))
	defer span.End()

	var result *domain.Promo
	err := c.repo.WithinTx(ctx, func(txCtx context.Context, txRepo domain.PromoRepository) error {
		var mErr error
		result, mErr = mutate(txCtx, txRepo)
		return mErr
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrPromoNotFound) || errors.Is(err, domain.ErrInvalidPromo) {
			mutationsTotal.WithLabelValues(op, "rejected").Inc()
			return nil, err
		}
		mutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, &domain.TransactionFailedError{Op: op, Err: err}
	}

	event := domain.NewPromoEvent(result, eventType, cause)
	pubCtx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(pubCtx, event); err != nil {
		publishFailuresTotal.WithLabelValues("best_effort").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("operation", op).
			Str("promo_id", result.ID).
			Msg("best-effort event publish failed, continuing")
	}

	mutationsTotal.WithLabelValues(op, "ok").Inc()
	return result, nil
}

func (c *TxCoordinator) publishAndCommit(ctx context.Context, session domain.EventSession, event *domain.PromoEvent) error {
	if err := session.Publish(ctx, event); err != nil {
		return err
	}
	return session.Commit(ctx)
}
