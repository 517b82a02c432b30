// Package metrics defines the prometheus collectors shared by the upstream
// client, the token manager and the aggregation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spotwrap"

const (
	OutcomeOk          = "ok"
	OutcomeAuthExpired = "auth_expired"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeBadRequest  = "bad_request"
	OutcomeError       = "error"
)

type Collectors struct {
	UpstreamRequests    *prometheus.CounterVec
	TokenRefreshes      prometheus.Counter
	AggregationDuration *prometheus.HistogramVec
}

// New creates a fresh set of collectors. They are not registered anywhere.
func New() *Collectors {
	return &Collectors{
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Upstream catalog API requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		TokenRefreshes: prometheus.NewCounter(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Successful client credentials exchanges.",
			},
		),
		AggregationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{ //nolint:exhaustruct
				Namespace: namespace,
				Name:      "aggregation_duration_seconds",
				Help:      "Wall time of aggregation operations.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"operation"},
		),
	}
}

func (c *Collectors) Register(r prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.UpstreamRequests, c.TokenRefreshes, c.AggregationDuration} {
		if err := r.Register(col); nil != err {
			return err
		}
	}
	return nil
}
