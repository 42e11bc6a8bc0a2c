// Package retrybp wraps github.com/avast/retry-go with context awareness,
// errorsbp.Batch results, capped exponential backoff and composable retry
// filters.
//
// Request handling in this module never retries. retrybp is used by
// backendbp.WaitReady to probe the backend at startup.
package retrybp
