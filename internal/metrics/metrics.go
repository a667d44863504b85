// Package metrics exposes prometheus instruments for the chat core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Composer metrics
	MessagesComposed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_messages_composed_total",
			Help: "Total outbound messages built by the composer",
		},
		[]string{"kind"}, // "text", "attachment", "reply"
	)

	VoiceRecordings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_voice_recordings_total",
			Help: "Voice recordings by outcome",
		},
		[]string{"outcome"}, // "kept", "too_short", "cancelled"
	)

	// Delivery metrics
	SendResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_send_results_total",
			Help: "Transport send results",
		},
		[]string{"result"}, // "ok", "failed"
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_status_transitions_total",
			Help: "Applied message status transitions",
		},
		[]string{"to"},
	)

	StaleStatusUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "propchat_stale_status_updates_total",
			Help: "Status updates ignored because they would regress a message",
		},
	)

	// Upload metrics
	UploadResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_upload_results_total",
			Help: "Attachment uploads by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "propchat_upload_duration_seconds",
			Help:    "Attachment upload duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)
)
