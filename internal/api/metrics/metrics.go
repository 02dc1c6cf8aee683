// Package metrics defines the custom Prometheus metrics of the MentalCompass
// API. Metrics register with the default registry on package init through
// promauto and are served by the echoprometheus handler at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mentalcompass"

// ── Chat metrics ──────────────────────────────────────────────────────────────

// ChatSessionsCreatedTotal counts new chat sessions.
// Label:
//   - origin: "seeker", "post_chat" or "post_reply"
var ChatSessionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_sessions_created_total",
		Help:      "Total number of chat sessions created, by origin.",
	},
	[]string{"origin"},
)

// ChatSessionConflictsTotal counts specialist-initiated creations rejected
// because an ACTIVE session already existed for the post.
var ChatSessionConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_session_conflicts_total",
		Help:      "Total number of duplicate session creations answered with the existing session.",
	},
)

// ChatMessagesAppendedTotal counts appended messages.
// Label:
//   - sender_role: "user" or "specialist"
var ChatMessagesAppendedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_messages_appended_total",
		Help:      "Total number of chat messages appended, by sender role.",
	},
	[]string{"sender_role"},
)

// ChatStreamsActive tracks open websocket subscriptions.
var ChatStreamsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chat_streams_active",
		Help:      "Current number of open chat websocket streams.",
	},
)

// ── Assistant metrics ─────────────────────────────────────────────────────────

// AssistantRepliesTotal counts assistant replies.
// Label:
//   - outcome: "ok" or "degraded" (an apology was returned)
var AssistantRepliesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assistant_replies_total",
		Help:      "Total number of assistant replies, by outcome.",
	},
	[]string{"outcome"},
)

// AssistantReplyDuration measures the full fallback loop of one request.
var AssistantReplyDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "assistant_reply_duration_seconds",
		Help:      "Duration of an assistant request including model fallbacks.",
		Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
	},
)

// ── Assessment queue metrics ─────────────────────────────────────────────────

// AssessmentQueueDepth tracks pending exchanges per dispatcher worker.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AssessmentQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "assessment_queue_depth",
		Help:      "Current number of exchanges pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AssessmentAppendsTotal counts assessment writes.
// Label:
//   - result: "ok", "error" or "dropped" (queue full)
var AssessmentAppendsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assessment_appends_total",
		Help:      "Total number of assessment appends, by result.",
	},
	[]string{"result"},
)

// AssessmentAppendDuration measures one assessment write.
var AssessmentAppendDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "assessment_append_duration_seconds",
		Help:      "Duration of an assessment append from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Registry metrics ──────────────────────────────────────────────────────────

// CertificationsReviewedTotal counts admin decisions.
// Label:
//   - status: "VERIFIED" or "REJECTED"
var CertificationsReviewedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certifications_reviewed_total",
		Help:      "Total number of certification reviews, by resulting status.",
	},
	[]string{"status"},
)
