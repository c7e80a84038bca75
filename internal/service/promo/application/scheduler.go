// internal/service/promo/application/scheduler.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"promohub/internal/pkg/logger"
	"promohub/internal/pkg/zookeeper"
	"promohub/internal/service/promo/domain"
)

// 调度器产生的事件携带的原因文本，区别于促销自身的描述字段。
const (
	causeActivated    = "Promo activated"
	causeSetToPending = "Promo set to pending"
	causeEnded        = "Promo ended"
)

// LeaderLock 是调度器的进程间互斥端口。TryLock 拿不到锁时应立即失败，
// 调度器据此跳过本轮，而不是阻塞等待。
type LeaderLock interface {
	TryLock() error
	Unlock() error
}

// SchedulerOptions 控制调度节奏。
type SchedulerOptions struct {
	Interval     time.Duration
	InitialDelay time.Duration
	TickTimeout  time.Duration
	// FireAndForget 为 true 时事件走非事务发送（原始部署的行为），
	// 默认走事务协调器，保证每次状态流转都有对应事件或显式失败。
	FireAndForget bool
}

// LifecycleScheduler 周期性扫描时间窗口已开启或关闭的促销并驱动状态流转。
// 每条记录的流转走和 API 写入完全相同的乐观锁+协调器路径，所以调度器和
// 并发的 API 更新之间由版本冲突天然互斥：输掉的一方在下一轮重新评估。
// 单条记录失败只记日志并继续下一条，不会拖垮整轮扫描。
type LifecycleScheduler struct {
	repo        domain.PromoRepository
	coordinator *TxCoordinator
	opts        SchedulerOptions
	lock        LeaderLock // 可以为 nil，单副本部署不需要
	tracer      trace.Tracer
}

func NewLifecycleScheduler(repo domain.PromoRepository, coordinator *TxCoordinator, opts SchedulerOptions, lock LeaderLock, tracer trace.Tracer) *LifecycleScheduler {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = 45 * time.Second
	}
	return &LifecycleScheduler{
		repo:        repo,
		coordinator: coordinator,
		opts:        opts,
		lock:        lock,
		tracer:      tracer,
	}
}

// Run 启动周期扫描，阻塞直到 ctx 取消。
func (s *LifecycleScheduler) Run(ctx context.Context) {
	if s.opts.InitialDelay > 0 {
		select {
		case <-time.After(s.opts.InitialDelay):
		case <-ctx.Done():
			return
		}
	}

	logger.L().Info().
		Dur("interval", s.opts.Interval).
		Bool("fire_and_forget", s.opts.FireAndForget).
		Msg("lifecycle scheduler started")

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runTick(ctx)
		case <-ctx.Done():
			logger.L().Info().Msg("lifecycle scheduler shutting down")
			return
		}
	}
}

func (s *LifecycleScheduler) runTick(ctx context.Context) {
	if s.lock != nil {
		if err := s.lock.TryLock(); err != nil {
			if errors.Is(err, zookeeper.ErrLockHeld) {
				logger.L().Debug().Msg("scheduler lock held by another node, skipping tick")
			} else {
				logger.L().Warn().Err(err).Msg("scheduler lock acquisition failed, skipping tick")
			}
			return
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				logger.L().Warn().Err(err).Msg("scheduler lock release failed")
			}
		}()
	}

	// 整轮扫描带截止时间，避免单条卡住的记录无限期占着调度器。
	tickCtx, cancel := context.WithTimeout(ctx, s.opts.TickTimeout)
	defer cancel()

	s.Tick(tickCtx, time.Now().UTC())
}

// Tick 执行一轮扫描。now 作为显式参数传入，便于确定性测试。
func (s *LifecycleScheduler) Tick(ctx context.Context, now time.Time) {
	ctx, span := s.tracer.Start(ctx, "scheduler.Tick",
		trace.WithAttributes(attribute.String("now", now.Format(time.RFC3339))))
	defer span.End()

	logger.Ctx(ctx).Info().Time("now", now).Msg("starting promo status check")

	s.checkAndStartPromos(ctx, now)
	s.checkAndEndPromos(ctx, now)
}

func (s *LifecycleScheduler) checkAndStartPromos(ctx context.Context, now time.Time) {
	candidates, err := s.repo.FindDueToStart(ctx, now)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to query promos due to start")
		return
	}

	for _, promo := range candidates {
		// 同一个查询会同时捞出"早该生效"和"即将生效"的记录，这里把两者
		// 统一归一到 PENDING 并发出更新事件。历史上 activate 分支也落在
		// PENDING 而不是 ENABLED，既有消费者依赖这个行为，保持原样。
		var cause string
		switch {
		case promo.Status == domain.StatusEnabled && promo.StartsAt.Before(now):
			cause = causeActivated
		case promo.Status == domain.StatusEnabled && promo.StartsAt.After(now):
			cause = causeSetToPending
		default:
			continue
		}
		s.transition(ctx, promo, domain.StatusPending, cause, now)
	}
}

func (s *LifecycleScheduler) checkAndEndPromos(ctx context.Context, now time.Time) {
	candidates, err := s.repo.FindDueToEnd(ctx, now)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to query promos due to end")
		return
	}

	for _, promo := range candidates {
		if promo.Status != domain.StatusEnabled && promo.Status != domain.StatusPending {
			continue
		}
		if promo.EndsAt == nil || !promo.EndsAt.Before(now) {
			continue
		}
		s.transition(ctx, promo, domain.StatusEnded, causeEnded, now)
	}
}

// transition 把一条记录推进到目标状态，错误与其他候选记录隔离。
func (s *LifecycleScheduler) transition(ctx context.Context, promo *domain.Promo, target domain.Status, cause string, now time.Time) {
	updated := promo.Clone()
	updated.Transition(target, now)

	mutate := func(txCtx context.Context, repo domain.PromoRepository) (*domain.Promo, error) {
		return repo.UpdateWithVersion(txCtx, promo.Version, updated)
	}

	var err error
	if s.opts.FireAndForget {
		_, err = s.coordinator.ExecuteBestEffort(ctx, "scheduler_transition", domain.EventPromoUpdated, cause, mutate)
	} else {
		_, err = s.coordinator.Execute(ctx, "scheduler_transition", domain.EventPromoUpdated, cause, mutate)
	}

	switch {
	case err == nil:
		schedulerTransitionsTotal.WithLabelValues(string(target)).Inc()
		logger.Ctx(ctx).Info().
			Str("promo_id", promo.ID).
			Str("status", string(target)).
			Str("cause", cause).
			Msg("promo transitioned")
	case errors.Is(err, domain.ErrVersionConflict):
		// 别的写入者已经动过这条记录，下一轮重新评估即可。
		logger.Ctx(ctx).Debug().
			Str("promo_id", promo.ID).
			Msg("promo already moved by a concurrent writer, skipping")
	default:
		logger.Ctx(ctx).Error().Err(err).
			Str("promo_id", promo.ID).
			Str("target_status", string(target)).
			Msg("promo transition failed")
	}
}
