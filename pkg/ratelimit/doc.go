// Package ratelimit limits sample ingestion per producer.
//
// Each producer (the authenticated token name, or the client address when
// auth is off) gets a token bucket refilled at samples_per_second with
// room for burst samples. Every ingested sample takes one token. A global
// ConcurrentLimiter caps simultaneous ingestion requests.
//
//	limiter := ratelimit.New(ratelimit.Config{SamplesPerSecond: 500, Burst: 1000})
//	if ok, retry := limiter.Allow("web", 1); !ok {
//	    // answer 429 with Retry-After: retry
//	}
//
// All types are safe for concurrent use.
package ratelimit
