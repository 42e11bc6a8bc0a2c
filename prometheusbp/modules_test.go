package prometheusbp

import (
	"runtime/debug"
	"testing"

	"github.com/latencylab/latencysvc/prometheusbp/promtest"
)

func TestRecordModuleVersions(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.22.0",
		Path:      "github.com/latencylab/latencysvc/cmd/latencysvc",
		Main: debug.Module{
			Path:    "github.com/latencylab/latencysvc",
			Version: "(devel)",
		},
		Deps: []*debug.Module{{
			Path:    "go.uber.org/zap",
			Version: "v1.15.0",
		}, {
			Path: "github.com/example/oldmodule",
			Replace: &debug.Module{
				Path:    "github.com/example/newmodule",
				Version: "v1.42.0",
			},
			Version: "v0.1.2",
		}},
	}

	defer promtest.NewPrometheusMetricTest(
		t, "main", goModules,
		"github.com/latencylab/latencysvc", "main", "false", "(devel)",
	).CheckDelta(1)
	defer promtest.NewPrometheusMetricTest(
		t, "dependency", goModules,
		"go.uber.org/zap", "dependency", "false", "v1.15.0",
	).CheckDelta(1)
	defer promtest.NewPrometheusMetricTest(
		t, "replaced", goModules,
		"github.com/example/oldmodule", "dependency", "true", "v0.1.2",
	).CheckDelta(1)

	RecordModuleVersions(info)
}
