package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mellowq_http_requests_total",
			Help: "Total number of HTTP requests by route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mellowq_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mellowq_rate_limited_total",
			Help: "Requests rejected by a rate limit",
		},
		[]string{"action"}, // "survey_creation", "response_submission", "followup", "global"
	)

	// Domain
	SurveysCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mellowq_surveys_created_total",
			Help: "Total number of surveys created",
		},
	)

	ResponsesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mellowq_responses_submitted_total",
			Help: "Total number of survey responses submitted",
		},
	)

	FollowupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mellowq_followups_created_total",
			Help: "Total number of follow-up questions asked",
		},
	)

	FollowupsAnswered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mellowq_followups_answered_total",
			Help: "Total number of follow-up questions answered",
		},
	)

	// Push
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mellowq_push_deliveries_total",
			Help: "Web push delivery attempts by outcome",
		},
		[]string{"kind", "result"}, // kind: "followup", "reminder"; result: "delivered", "gone", "failed", "skipped"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mellowq_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
