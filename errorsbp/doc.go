// Package errorsbp provides Batch, which compiles multiple errors into a single
// one.
//
// It's mainly used by validation code that wants to report every problem
// found instead of stopping at the first one:
//
//	func (c Config) Validate() error {
//		var batch errorsbp.Batch
//		if c.Port <= 0 {
//			batch.Add(errors.New("port must be positive"))
//		}
//		batch.AddPrefix("backend", c.Backend.Validate())
//		// Compile returns nil when nothing was added, and the only error
//		// as-is when exactly one was added.
//		return batch.Compile()
//	}
//
// Batch is not thread-safe.
package errorsbp
