package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests.
	// Labels:
	//   - method: HTTP method
	//   - route: chi route pattern, "unmatched" when no route applied
	//   - status: response status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures request latency. Recommendation requests
	// include page scraping and a model call, so buckets reach a minute.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	// RecommendationsReturned observes the size of each returned set
	RecommendationsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_recommendations_returned",
			Help:    "Number of assessments in each recommendation response",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 10, 15, 20},
		},
	)

	// ScrapeFailuresTotal counts linked pages that could not be fetched
	ScrapeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_scrape_failures_total",
			Help: "Total number of failed URL scrapes",
		},
	)

	// ParseEmptyTotal counts model responses that yielded no recommendations
	ParseEmptyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_parse_empty_total",
			Help: "Total number of model responses parsed to an empty set",
		},
	)
)
