// Package metrics 汇总 Prometheus 指标。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry 保存应用自定义的指标
	Registry = prometheus.NewRegistry()

	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "levelup",
			Subsystem: "engine",
			Name:      "completions_total",
			Help:      "Task completion state transitions by action.",
		},
		[]string{"action"},
	)

	levelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "levelup",
			Subsystem: "engine",
			Name:      "level_ups_total",
			Help:      "Completions that raised a user's level.",
		},
	)

	skippedClauses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "levelup",
			Subsystem: "engine",
			Name:      "reward_clauses_skipped_total",
			Help:      "Reward expression clauses that could not be parsed.",
		},
	)

	completionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "levelup",
			Subsystem: "engine",
			Name:      "completion_conflicts_total",
			Help:      "Completions rejected by the per-day uniqueness constraint.",
		},
	)

	streakResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "levelup",
			Subsystem: "streak",
			Name:      "resets_total",
			Help:      "Streaks reset by the inactivity check.",
		},
		[]string{"source"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "levelup",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "levelup",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		completions,
		levelUps,
		skippedClauses,
		completionConflicts,
		streakResets,
		httpRequests,
		httpDuration,
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordCompletion 记录一次完成/取消完成
func RecordCompletion(action string, leveledUp bool) {
	completions.WithLabelValues(action).Inc()
	if leveledUp {
		levelUps.Inc()
	}
}

// RecordSkippedClauses 记录被跳过的奖励子句数量
func RecordSkippedClauses(n int) {
	if n > 0 {
		skippedClauses.Add(float64(n))
	}
}

// RecordCompletionConflict 记录唯一约束冲突
func RecordCompletionConflict() {
	completionConflicts.Inc()
}

// RecordStreakReset 记录连胜被清零，source 为 checkin/sweep
func RecordStreakReset(source string, n int) {
	if n > 0 {
		streakResets.WithLabelValues(source).Add(float64(n))
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
