// Package log provides a wrapped zap logger for the service to use, and a
// simple Wrapper type to be used by the other packages in this module.
//
// There's a global logger used by the top level functions, and a way to attach
// a logger with additional info (e.g. the request id) to a context object.
// When you have a context object, use the logger attached to it:
//
//	log.C(ctx).Errorw("Something went wrong!", "err", err)
//
// Otherwise use the global one:
//
//	log.Errorw("Something went wrong!", "err", err)
package log
