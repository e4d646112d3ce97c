package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registerOnce        sync.Once
	promptSubmissions   *prometheus.CounterVec
	upvoteToggles       *prometheus.CounterVec
	moderationDecisions *prometheus.CounterVec
	listDuration        *prometheus.HistogramVec
)

const namespaceMetrics = "promptlib"

// MustRegister 初始化 Prometheus 指标并注册 Go 运行时采样器，需在应用启动阶段调用一次。
func MustRegister() {
	registerOnce.Do(func() {
		promptSubmissions = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "prompts",
					Name:      "submissions_total",
					Help:      "提示词提交次数，按结果统计。",
				},
				[]string{"result"},
			),
		)
		upvoteToggles = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "prompts",
					Name:      "upvote_toggles_total",
					Help:      "点赞切换次数，按最终方向（liked/unliked）统计。",
				},
				[]string{"direction"},
			),
		)
		moderationDecisions = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "moderation",
					Name:      "decisions_total",
					Help:      "审核决定次数，按目标状态统计。",
				},
				[]string{"status"},
			),
		)
		listDuration = registerHistogramVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespaceMetrics,
					Subsystem: "prompts",
					Name:      "list_duration_seconds",
					Help:      "列表查询耗时，按访问身份区分。",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"viewer"},
			),
		)

		registerRuntimeCollectors()
	})
}

// RecordPromptSubmission 记录提示词提交的结果分布。
func RecordPromptSubmission(result string) {
	if promptSubmissions == nil {
		return
	}
	promptSubmissions.WithLabelValues(normalizeLabel(result, "unknown")).Inc()
}

// RecordUpvoteToggle 记录点赞切换的最终方向。
func RecordUpvoteToggle(direction string) {
	if upvoteToggles == nil {
		return
	}
	upvoteToggles.WithLabelValues(normalizeLabel(direction, "unknown")).Inc()
}

// RecordModerationDecision 记录审核决定的目标状态。
func RecordModerationDecision(status string) {
	if moderationDecisions == nil {
		return
	}
	moderationDecisions.WithLabelValues(normalizeLabel(status, "unknown")).Inc()
}

// ObserveListDuration 记录列表查询耗时，viewer 取 anonymous/user/admin。
func ObserveListDuration(viewer string, duration time.Duration) {
	if listDuration == nil {
		return
	}
	listDuration.WithLabelValues(normalizeLabel(viewer, "anonymous")).Observe(duration.Seconds())
}

func normalizeLabel(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerRuntimeCollectors() {
	if err := prometheus.Register(collectors.NewGoCollector()); err != nil {
		if !isAlreadyRegistered(err) {
			panic(err)
		}
	}
	if err := prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		if !isAlreadyRegistered(err) {
			panic(err)
		}
	}
}

func isAlreadyRegistered(err error) bool {
	_, ok := err.(prometheus.AlreadyRegisteredError)
	return ok
}
