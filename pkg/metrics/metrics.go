// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes recorded by TurnsTotal.
const (
	OutcomeAnswered = "answered"  // data returned and narrated
	OutcomeDirect   = "direct"    // answered without SQL
	OutcomeFailed   = "failed"    // repair loop exhausted or guardrail kept blocking
	OutcomeError    = "error"     // a stage failed and the turn ended with an apology
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ekaya_askdata_build_info",
			Help: "Build information of ekaya-askdata",
		},
		[]string{"version"},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_turns_total",
			Help: "Total number of answered questions by outcome",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ekaya_askdata_turn_duration_seconds",
			Help:    "Duration of a full question turn in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_askdata_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_stage_errors_total",
			Help: "Total number of stage failures that ended a turn",
		},
		[]string{"stage"},
	)

	GuardrailBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_guardrail_blocks_total",
			Help: "Total number of statements rejected by the keyword guardrail",
		},
		[]string{"keyword"},
	)

	RepairAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_repair_attempts_total",
			Help: "Total number of SQL repair attempts",
		},
	)

	QueryExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_query_executions_total",
			Help: "Total number of statements sent to the datasource",
		},
		[]string{"status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ekaya_askdata_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MCPToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ekaya_askdata_mcp_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "status"},
	)
)
