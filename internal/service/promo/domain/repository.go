// internal/service/promo/domain/repository.go
package domain

import (
	"context"
	"time"
)

// PromoRepository 是带版本号的持久化端口。
// 所有带 WithVersion 的操作实现条件写语义：只有 (id, expectedVersion) 完全匹配
// 才会生效，否则返回 ErrVersionConflict。
type PromoRepository interface {
	// Insert 写入一条新纪录。ID 和 version 由调用方在实体上准备好。
	Insert(ctx context.Context, promo *Promo) error

	// FindByID 按主键查找，不存在时返回 ErrPromoNotFound。
	FindByID(ctx context.Context, id string) (*Promo, error)

	// FindPage 分页列出记录。
	FindPage(ctx context.Context, page, size int) ([]*Promo, error)

	// UpdateWithVersion 条件更新：匹配 (id, expectedVersion) 时以 promo 的字段
	// 全量覆盖并把版本置为 expectedVersion+1，返回更新后的记录。
	UpdateWithVersion(ctx context.Context, expectedVersion int64, promo *Promo) (*Promo, error)

	// DeleteWithVersion 条件删除，物理移除记录。
	DeleteWithVersion(ctx context.Context, id string, expectedVersion int64) error

	// FindDueToStart 查询窗口已开启的候选：状态为 ENABLED/PENDING，
	// startsAt <= now 且（无 endsAt 或 endsAt > now）。
	FindDueToStart(ctx context.Context, now time.Time) ([]*Promo, error)

	// FindDueToEnd 查询窗口已关闭的候选：状态为 ENABLED/PENDING 且 endsAt <= now。
	FindDueToEnd(ctx context.Context, now time.Time) ([]*Promo, error)

	// WithinTx 在一个存储原生事务里执行 fn，fn 返回错误时整体回滚。
	// fn 收到的 repo 是绑定了事务的实例。
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo PromoRepository) error) error
}

// EventSession 是一次消息事务：Publish 进入缓冲，Commit 把整批原子地写入
// 通道，Abort 丢弃缓冲。批内消息对消费者要么全部可见要么全部不可见。
type EventSession interface {
	Publish(ctx context.Context, event *PromoEvent) error
	Commit(ctx context.Context) error
	Abort() error
}

// EventPublisher 是事件通道端口。
type EventPublisher interface {
	// Begin 开启一次消息事务。
	Begin(ctx context.Context) (EventSession, error)

	// Publish 一次性发送，不提供事务语义，供 fire-and-forget 路径使用。
	Publish(ctx context.Context, event *PromoEvent) error
}

// PromoCache 是读路径的旁路缓存端口，未命中返回 (nil, nil)。
type PromoCache interface {
	Get(ctx context.Context, id string) (*Promo, error)
	Set(ctx context.Context, promo *Promo) error
	Invalidate(ctx context.Context, id string) error
}
