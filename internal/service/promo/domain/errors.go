// internal/service/promo/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPromoNotFound 表示目标记录不存在。
	ErrPromoNotFound = errors.New("promo not found")

	// ErrVersionConflict 表示条件写没有命中期望版本，
	// 说明记录在读取之后已被其他写入者修改，调用方需要重读后重试或放弃。
	ErrVersionConflict = errors.New("optimistic lock failed: version conflict")

	// ErrInvalidPromo 表示实体缺少必填字段，属于结构性错误。
	ErrInvalidPromo = errors.New("invalid promo")
)

func invalidPromo(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPromo, reason)
}

// TransactionFailedError 表示存储事务或消息事务未能提交。
// StoreCommitted 为 true 时，存储侧已经落盘而事件没有发出去——
// 这是已知的双写缺口，必须作为对账候选高优先级记录，而不是普通失败。
type TransactionFailedError struct {
	Op             string
	StoreCommitted bool
	Err            error
}

func (e *TransactionFailedError) Error() string {
	if e.StoreCommitted {
		return fmt.Sprintf("transaction failed for %s: store committed but event publish failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transaction failed for %s: %v", e.Op, e.Err)
}

func (e *TransactionFailedError) Unwrap() error {
	return e.Err
}

// IsTransactionFailed 判断错误链里是否有事务失败。
func IsTransactionFailed(err error) bool {
	var tf *TransactionFailedError
	return errors.As(err, &tf)
}
