package config

import "time"

var (
	TokenExchangeTimeout     = 5 * time.Second
	TokenExpiryLeeway        = 30 * time.Second
	SearchRequestTimeout     = 5 * time.Second
	EntityRequestTimeout     = 5 * time.Second
	SeveralRequestTimeout    = 10 * time.Second
	PageRequestTimeout       = 5 * time.Second
	AggregationTimeout       = 2 * time.Minute
	ServerReadHeaderTimeout  = 5 * time.Second
	ServerShutdownGrace      = 10 * time.Second
	CommandRetryMaxAttempts  = 4
	CommandRetryInitialDelay = 2 * time.Second
)
