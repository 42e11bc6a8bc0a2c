package main

import (
	"os"

	"github.com/latencylab/latencysvc/cmd/lib/healthcheck"
)

func main() {
	os.Exit(healthcheck.Run())
}
