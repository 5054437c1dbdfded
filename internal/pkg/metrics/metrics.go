package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ModerationDecisions 完整审核结论计数，action 为 APPROVE/REJECT/ERROR
var ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bazaar_moderation_decisions_total",
	Help: "Number of full moderation runs by outcome",
}, []string{"category", "action"})

// ModerationDuration 完整审核耗时
var ModerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bazaar_moderation_duration_sec",
	Help:    "Duration of full moderation runs",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"category"})

// GateRejections 提交前快速检查拒绝数
var GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bazaar_submission_gate_rejections_total",
	Help: "Number of submissions rejected by the pre-insert gate",
}, []string{"category"})

// QueueRejections 审核队列已满被拒的任务数
var QueueRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bazaar_moderation_queue_rejections_total",
	Help: "Number of moderation jobs rejected because the queue was full",
})

// StaleModerations 超时被定时任务置为 FAILED 的帖子数
var StaleModerations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "bazaar_moderation_stale_total",
	Help: "Number of posts failed by the stale moderation sweeper",
})

// RuleSetVersion 当前规则表版本
var RuleSetVersion = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bazaar_rule_set_version",
	Help: "Version of the active moderation rule set",
})
