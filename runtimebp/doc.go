// Package runtimebp provides extensions to the runtime package: container
// aware GOMAXPROCS and shutdown signal handling.
package runtimebp
