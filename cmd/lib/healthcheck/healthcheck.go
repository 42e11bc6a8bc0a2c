package healthcheck

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/latencylab/latencysvc/httpbp"
)

const (
	defaultTimeout = time.Second
	maxHTTPBody    = 4096
)

// Run runs healthcheck.
//
// It returns 0 to indicate success,
// and non-zero to indicate failure.
func Run() (ret int) {
	if err := RunArgs(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}
	fmt.Println("OK!")
	return 0
}

// Actual value type: string, the path probed.
//
// "/" is left out on purpose: it calls the backend and records a benchmark
// observation.
var probes = map[string]interface{}{
	"health":  "/health",
	"metrics": "/metrics",
}

// RunArgs is the more customizable/testable version of Run.
//
// In production code it expects you to pass in os.Args as the arg.
func RunArgs(args []string) error {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	addr := fs.String(
		"endpoint",
		"localhost:8080",
		`The endpoint to find the service on, in "host:port" format without schema.`,
	)
	timeout := fs.Duration(
		"timeout",
		defaultTimeout,
		"The timeout for this healthcheck.",
	)
	probe := oneof{
		choices: probes,
		value:   "health",
	}
	fs.Var(
		&probe,
		"probe",
		fmt.Sprintf("The endpoint to probe, one of %s.", probe.choicesString()),
	)
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	return checkHTTP(*addr, probe.getValue().(string), *timeout)
}

func checkHTTP(addr, path string, timeout time.Duration) error {
	client := http.Client{
		Timeout: timeout,
	}
	url := fmt.Sprintf(`http://%s%s`, addr, path)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer httpbp.DrainAndClose(resp.Body)
	clientErr := httpbp.ClientErrorFromResponse(resp)
	if clientErr != nil {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
		if err != nil {
			return fmt.Errorf(
				"http client error: %w, failed to read body: %v",
				clientErr,
				err,
			)
		}
		return fmt.Errorf(
			"http client error: %w, body: %s",
			clientErr,
			body,
		)
	}
	return nil
}
