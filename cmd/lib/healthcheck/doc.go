// Package healthcheck implements the logic for the healthcheck binary, which
// probes a running latencysvc (or mockbackend) over HTTP.
//
// To use this library, create a package with main function as:
//
//	func main() {
//	  os.Exit(healthcheck.Run())
//	}
package healthcheck
