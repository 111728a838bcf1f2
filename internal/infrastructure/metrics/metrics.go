package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meal_guardrails"

var (
	registerOnce sync.Once

	rulesetLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ruleset_loads_total",
		Help:      "規則集載入次數（依來源：database / fallback）",
	}, []string{"source"})
	rulesetLoadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ruleset_load_errors_total",
		Help:      "規則集載入失敗次數",
	})
	rulesetLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ruleset_load_duration_seconds",
		Help:      "規則集載入耗時",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})
	rulesetCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ruleset_cache_lookups_total",
		Help:      "規則集快取查詢（hit / miss）",
	}, []string{"result"})

	rescoreRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rescore_records_total",
		Help:      "批次重新評分處理的紀錄數（updated / unchanged / failed）",
	}, []string{"outcome"})
	rescoreDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rescore_duration_seconds",
		Help:      "單一使用者批次重新評分耗時",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "排程隊列中等待的工作數",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP 請求數",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP 請求耗時",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Register 註冊到全域 Prometheus registry（可重複呼叫）
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(rulesetLoads, rulesetLoadErrors, rulesetLoadDuration, rulesetCache,
			rescoreRecords, rescoreDuration, queueDepth,
			httpRequests, httpDuration)
	})
}

// 規則集
func ObserveRulesetLoad(source string, d time.Duration) {
	rulesetLoads.WithLabelValues(source).Inc()
	rulesetLoadDuration.Observe(d.Seconds())
}
func IncRulesetLoadError() { rulesetLoadErrors.Inc() }
func IncRulesetCache(hit bool) {
	if hit {
		rulesetCache.WithLabelValues("hit").Inc()
		return
	}
	rulesetCache.WithLabelValues("miss").Inc()
}

// 重新評分
func ObserveRescore(updated, unchanged, failed int, d time.Duration) {
	rescoreRecords.WithLabelValues("updated").Add(float64(updated))
	rescoreRecords.WithLabelValues("unchanged").Add(float64(unchanged))
	rescoreRecords.WithLabelValues("failed").Add(float64(failed))
	rescoreDuration.Observe(d.Seconds())
}
func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

// HTTP
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
