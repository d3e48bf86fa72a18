package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mangrove_sessions_live",
		Help: "Number of map sessions currently bound to a container",
	})
	SessionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mangrove_session_conflicts_total",
		Help: "Total mounts that found a live session on the container and tore it down first",
	})
	OverlayFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mangrove_overlay_fetch_total",
		Help: "Total overlay fetches by source and outcome",
	}, []string{"source", "outcome"})
	FallbackSynthesizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mangrove_fallback_synthesized_total",
		Help: "Total load cycles that used synthesized fallback geometry",
	})
	CompareDegradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mangrove_compare_degraded_total",
		Help: "Total comparison bindings rendered without the split control",
	})
	LateResultsDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mangrove_late_results_discarded_total",
		Help: "Total load cycle results dropped because the session was torn down",
	})
)

// Register 注册全部指标, 只在进程启动时调用一次
func Register(r prometheus.Registerer) {
	r.MustRegister(
		SessionsLive,
		SessionConflictsTotal,
		OverlayFetchTotal,
		FallbackSynthesizedTotal,
		CompareDegradedTotal,
		LateResultsDiscardedTotal,
	)
}

// Handler 返回指标 HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
