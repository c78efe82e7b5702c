package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanOutcomes counts scans and manual code validations by method and result code.
	ScanOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "scans_total",
			Help:      "The total number of check-in attempts by outcome",
		},
		[]string{"method", "code"},
	)

	// TicketsIssued counts tickets created through join or walk-up check-in.
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "tickets_issued_total",
			Help:      "The total number of tickets issued",
		},
		[]string{"source"},
	)

	// CodeCollisions counts ticket codes that had to be redrawn.
	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "ticket_code_collisions_total",
			Help:      "The total number of ticket code draws rejected as already taken",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	AuditMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	AuditMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)
)

const (
	SourceJoin   = "join"
	SourceWalkUp = "walk_up"
)
