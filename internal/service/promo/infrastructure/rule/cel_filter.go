// internal/service/promo/infrastructure/rule/cel_filter.go
package rule

import (
	"encoding/json"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"promohub/internal/service/promo/domain"
)

// EventFilter 是一条编译好的 CEL 过滤表达式。
// 推送网关的订阅方用它声明自己关心哪些事件，例如：
//
//	event.eventType == "PROMO_UPDATED" && event.payload.status == "ended"
//	"item-42" in event.payload.itemIds
//
// 表达式对一个名为 event 的 map 求值，结构与事件的 JSON 线上格式一致。
type EventFilter struct {
	program cel.Program
}

// CompileEventFilter 编译过滤表达式，表达式必须求值为布尔。
func CompileEventFilter(expr string) (*EventFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter environment")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "invalid filter expression %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("filter expression %q must evaluate to a boolean", expr)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build filter program")
	}
	return &EventFilter{program: program}, nil
}

// Matches 判断事件是否通过过滤。
// 事件先转成 map 再求值，和规则引擎打交道时 map 形式最通用。
func (f *EventFilter) Matches(event *domain.PromoEvent) (bool, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode event for filtering")
	}
	var fact map[string]interface{}
	if err := json.Unmarshal(raw, &fact); err != nil {
		return false, errors.Wrap(err, "failed to decode event for filtering")
	}

	out, _, err := f.program.Eval(map[string]interface{}{"event": fact})
	if err != nil {
		return false, errors.Wrap(err, "filter evaluation failed")
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter returned non-boolean value %T", out.Value())
	}
	return result, nil
}
