package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Database Metrics
	// ==========================================================================
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// ==========================================================================
	// Pipeline Engine Metrics (generalizes the teacher's bid engine metrics
	// across all nine stages instead of a single bid queue)
	// ==========================================================================
	PipelineQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Current depth of the pipeline task queue",
		},
		[]string{"stage"},
	)

	PipelineWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_workers_active",
			Help: "Number of active per-listing pipeline workers",
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Time to process a single stage task",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	PipelineStageOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_outcome_total",
			Help: "Outcomes of stage processing (done, retry, dead_letter, skip)",
		},
		[]string{"stage", "outcome"},
	)

	PipelineRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_retries_total",
			Help: "Total retries across pipeline stages",
		},
		[]string{"stage"},
	)

	PipelineDeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_dead_letters_total",
			Help: "Total tasks dead-lettered per stage",
		},
		[]string{"stage"},
	)

	// ==========================================================================
	// Dedupe / Price / Risk / Score Metrics
	// ==========================================================================
	DedupeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedupe_decisions_total",
			Help: "Dedupe decisions by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: duplicate, unique
	)

	PriceComparableSampleSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_comparable_sample_size",
			Help:    "Distribution of comparable sample sizes used for pricing",
			Buckets: []float64{0, 5, 10, 20, 30, 50, 100, 150, 200},
		},
	)

	PriceConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_confidence",
			Help:    "Distribution of price-stage confidence scores",
			Buckets: []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		},
	)

	RiskDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_decisions_total",
			Help: "Risk level decisions by source (rule, llm)",
		},
		[]string{"risk_level", "source"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "LLM risk-escalation calls by outcome",
		},
		[]string{"outcome"}, // hit, miss, error, timeout
	)

	LLMCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "LLM transport call latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	ScoreApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_approvals_total",
			Help: "Scoring state outcomes",
		},
		[]string{"state"}, // draft, approved, rejected
	)

	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "score_distribution",
			Help:    "Distribution of final listing scores",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 7.5, 8, 9, 10},
		},
	)

	// ==========================================================================
	// Channel Delivery Metrics
	// ==========================================================================
	ChannelPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_posts_total",
			Help: "Channel delivery outcomes",
		},
		[]string{"channel", "outcome"}, // posted, edited, rate_limited, diversity_capped, skipped, error
	)

	ChannelBucketTokensRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_bucket_tokens_remaining",
			Help: "Remaining token-bucket capacity per channel",
		},
		[]string{"channel"},
	)

	// ==========================================================================
	// Alert Metrics
	// ==========================================================================
	AlertMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_matches_total",
			Help: "Alert match outcomes",
		},
		[]string{"status"}, // pending, notified, skipped, failed
	)

	AlertDeliveryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_delivery_latency_seconds",
			Help:    "matched_at to notified_at latency",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
		},
	)

	AlertDailyCapHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_daily_cap_hits_total",
			Help: "Total alert matches skipped for hitting the daily cap",
		},
	)

	// ==========================================================================
	// Scrape Metrics
	// ==========================================================================
	ScrapeRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_records_total",
			Help: "Scraped records by source and outcome",
		},
		[]string{"source", "outcome"}, // new, updated, unchanged, error
	)

	SourcesPausedTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sources_paused_total",
			Help: "Number of sources currently paused due to error rate",
		},
	)

	// ==========================================================================
	// Debug Event Bus Metrics
	// ==========================================================================
	SSESubscribersPerListing = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "debug_stream_subscribers_per_listing",
			Help:    "Distribution of debug-stream subscriber counts per listing broadcast",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
	)

	// ==========================================================================
	// External API Metrics
	// ==========================================================================
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_calls_total",
			Help: "Total external API calls",
		},
		[]string{"service", "endpoint", "status"},
	)

	ExternalAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_api_latency_seconds",
			Help:    "External API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "endpoint"},
	)
)
