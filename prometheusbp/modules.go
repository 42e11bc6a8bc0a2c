package prometheusbp

import (
	"runtime/debug"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var goModules = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
	Name: "latencysvc_go_modules",
	Help: "The Go modules linked into this binary, and whether the module is the 'main' module or a 'dependency'. Always 1",
}, []string{"go_module", "module_role", "module_replaced", "module_version"})

// RecordModuleVersions records the modules linked into this binary in the
// latencysvc_go_modules metric.
//
// It's not safe to be called concurrently.
func RecordModuleVersions(info *debug.BuildInfo) {
	record := func(role string, mod *debug.Module) {
		goModules.With(prometheus.Labels{
			"go_module":       mod.Path,
			"module_role":     role,
			"module_replaced": strconv.FormatBool(mod.Replace != nil),
			"module_version":  mod.Version,
		}).Set(1)
	}

	goModules.Reset()
	record("main", &info.Main)
	for _, dep := range info.Deps {
		record("dependency", dep)
	}
}

// RecordBuildInfo calls RecordModuleVersions with the build info embedded in
// the running binary, if there is one.
func RecordBuildInfo() {
	if info, ok := debug.ReadBuildInfo(); ok {
		RecordModuleVersions(info)
	}
}
