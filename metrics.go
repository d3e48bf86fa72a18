package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"mangrove-viewer/internal/metrics"
)

// InitMetrics 注册指标, 配置了地址时启动指标服务
func InitMetrics() {
	metrics.Register(prometheus.DefaultRegisterer)
	if conf.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		log.Infof("metrics server listening on %s", conf.Metrics.Addr)
		if err := http.ListenAndServe(conf.Metrics.Addr, mux); err != nil {
			log.Warnf("metrics server stopped: %v", err)
		}
	}()
}
