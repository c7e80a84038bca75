// internal/service/promo/domain/status.go
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status 是促销活动的生命周期状态。
// 内部和存储层使用大写形式，对外的 JSON 表示固定为小写，兼容既有消费者。
type Status string

const (
	StatusEnabled Status = "ENABLED"
	StatusPaused  Status = "PAUSED"
	StatusPending Status = "PENDING"
	StatusEnded   Status = "ENDED"
	StatusDeleted Status = "DELETED"
)

var validStatuses = map[Status]struct{}{
	StatusEnabled: {},
	StatusPaused:  {},
	StatusPending: {},
	StatusEnded:   {},
	StatusDeleted: {},
}

// ParseStatus 解析任意大小写的状态字符串。
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(s))
	if _, ok := validStatuses[status]; !ok {
		return "", fmt.Errorf("invalid status %q, allowed values: enabled, paused, pending, ended, deleted", s)
	}
	return status, nil
}

func (s Status) IsValid() bool {
	_, ok := validStatuses[s]
	return ok
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(string(s)))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
