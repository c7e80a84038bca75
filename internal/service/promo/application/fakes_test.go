// internal/service/promo/application/fakes_test.go
package application

import (
	"context"
	"sync"
	"time"

	"promohub/internal/service/promo/domain"
)

// memoryRepo 是 domain.PromoRepository 的内存实现，
// 条件写语义与真实存储一致：版本不匹配返回 ErrVersionConflict。
type memoryRepo struct {
	mu     sync.Mutex
	promos map[string]*domain.Promo

	// 按 id 注入的更新错误，用来模拟并发写入者抢先提交。
	updateErrs map[string]error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		promos:     make(map[string]*domain.Promo),
		updateErrs: make(map[string]error),
	}
}

func (r *memoryRepo) seed(p *domain.Promo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos[p.ID] = p.Clone()
}

func (r *memoryRepo) get(id string) *domain.Promo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.promos[id]; ok {
		return p.Clone()
	}
	return nil
}

func (r *memoryRepo) Insert(ctx context.Context, promo *domain.Promo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promos[promo.ID] = promo.Clone()
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (*domain.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[id]
	if !ok {
		return nil, domain.ErrPromoNotFound
	}
	return p.Clone(), nil
}

func (r *memoryRepo) FindPage(ctx context.Context, page, size int) ([]*domain.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*domain.Promo, 0, len(r.promos))
	for _, p := range r.promos {
		all = append(all, p.Clone())
	}
	start := page * size
	if start >= len(all) {
		return nil, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *memoryRepo) UpdateWithVersion(ctx context.Context, expectedVersion int64, promo *domain.Promo) (*domain.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.updateErrs[promo.ID]; ok {
		return nil, err
	}
	current, ok := r.promos[promo.ID]
	if !ok || current.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	next := promo.Clone()
	next.Version = expectedVersion + 1
	r.promos[promo.ID] = next
	return next.Clone(), nil
}

func (r *memoryRepo) DeleteWithVersion(ctx context.Context, id string, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.promos[id]
	if !ok || current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	delete(r.promos, id)
	return nil
}

func (r *memoryRepo) FindDueToStart(ctx context.Context, now time.Time) ([]*domain.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Promo
	for _, p := range r.promos {
		if !schedulable(p.Status) {
			continue
		}
		if p.StartsAt.After(now) {
			continue
		}
		if p.EndsAt != nil && !p.EndsAt.After(now) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *memoryRepo) FindDueToEnd(ctx context.Context, now time.Time) ([]*domain.Promo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Promo
	for _, p := range r.promos {
		if !schedulable(p.Status) {
			continue
		}
		if p.EndsAt == nil || p.EndsAt.After(now) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *memoryRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, repo domain.PromoRepository) error) error {
	return fn(ctx, r)
}

func schedulable(s domain.Status) bool {
	return s == domain.StatusEnabled || s == domain.StatusPending
}

// capturingPublisher 记录所有提交成功的事件，并支持注入提交失败。
type capturingPublisher struct {
	mu        sync.Mutex
	committed []*domain.PromoEvent
	direct    []*domain.PromoEvent
	aborted   int

	commitErr  error
	publishErr error
}

func (p *capturingPublisher) Begin(ctx context.Context) (domain.EventSession, error) {
	return &capturingSession{pub: p}, nil
}

func (p *capturingPublisher) Publish(ctx context.Context, event *domain.PromoEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.direct = append(p.direct, event)
	return nil
}

func (p *capturingPublisher) committedEvents() []*domain.PromoEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.PromoEvent(nil), p.committed...)
}

func (p *capturingPublisher) abortCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

type capturingSession struct {
	pub    *capturingPublisher
	buffer []*domain.PromoEvent
}

func (s *capturingSession) Publish(ctx context.Context, event *domain.PromoEvent) error {
	s.buffer = append(s.buffer, event)
	return nil
}

func (s *capturingSession) Commit(ctx context.Context) error {
	s.pub.mu.Lock()
	defer s.pub.mu.Unlock()
	if s.pub.commitErr != nil {
		return s.pub.commitErr
	}
	s.pub.committed = append(s.pub.committed, s.buffer...)
	return nil
}

func (s *capturingSession) Abort() error {
	s.pub.mu.Lock()
	defer s.pub.mu.Unlock()
	s.pub.aborted++
	return nil
}
