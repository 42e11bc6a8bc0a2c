// Package randbp provides the jitter helpers used by the circuit breaker and
// retry backoff.
//
// It's backed by math/rand/v2, which is automatically seeded and safe for
// concurrent use.
package randbp
