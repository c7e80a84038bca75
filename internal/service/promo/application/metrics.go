// internal/service/promo/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_mutations_total",
		Help: "Committed and failed promo mutations by operation.",
	}, []string{"operation", "result"})

	schedulerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_scheduler_transitions_total",
		Help: "Lifecycle transitions applied by the scheduler.",
	}, []string{"transition"})

	publishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_event_publish_failures_total",
		Help: "Event publish failures by publish mode.",
	}, []string{"mode"})

	// 存储已提交但事件没发出去的次数，每一次都对应一个待对账的缺口。
	divergenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promo_store_event_divergence_total",
		Help: "Mutations durably committed without a corresponding published event.",
	})
)
