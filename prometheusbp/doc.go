// Package prometheusbp provides the prometheus registry shared by the other
// packages of this module, plus a few helpers.
//
// Every metric other than the benchmark histogram itself is registered with
// Registry, which the admin server exposes. The benchmark histogram is also
// registered there by the composition root.
package prometheusbp
