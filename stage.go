package latencysvc

// Stage is a step of the request pipeline.
type Stage int

// Stages of the request pipeline, in order.
//
// A request goes START, SIMULATING, CALLING_BACKEND, RESPONDING then RECORDED
// on success, and jumps to ERROR_RESPONDING then RECORDED when simulating or
// calling the backend fails.
const (
	StageStart Stage = iota
	StageSimulating
	StageCallingBackend
	StageResponding
	StageErrorResponding
	StageRecorded
)

var stageNames = [...]string{
	StageStart:           "START",
	StageSimulating:      "SIMULATING",
	StageCallingBackend:  "CALLING_BACKEND",
	StageResponding:      "RESPONDING",
	StageErrorResponding: "ERROR_RESPONDING",
	StageRecorded:        "RECORDED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}
