// Package batchcloser collects the resources a process holds until shutdown
// and closes them all at once.
//
// It also provides helpers wrapping close and cancel functions as io.Closer.
package batchcloser
