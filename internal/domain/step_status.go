package domain

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepActive  StepStatus = "active"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

func (s StepStatus) Terminal() bool {
	return s == StepDone || s == StepFailed || s == StepSkipped
}

// CanTransition enforces that a step only finishes after it was active.
func (s StepStatus) CanTransition(next StepStatus) bool {
	switch next {
	case StepActive:
		return s == StepPending
	case StepDone, StepFailed:
		return s == StepActive
	case StepSkipped:
		return s == StepPending || s == StepActive
	default:
		return false
	}
}

type StepID string

const (
	StepSnapshot    StepID = "snapshot"
	StepMemory      StepID = "memory"
	StepPostCommand StepID = "post-command"
	StepLinter      StepID = "linter"
)

var PipelineOrder = []StepID{StepSnapshot, StepMemory, StepPostCommand, StepLinter}

func StepTitle(id StepID) string {
	switch id {
	case StepSnapshot:
		return "Reading initial file snapshot"
	case StepMemory:
		return "Applying operations to memory"
	case StepPostCommand:
		return "Running post-command script"
	case StepLinter:
		return "Analyzing changes with linter"
	default:
		return string(id)
	}
}

type PatchStatus string

const (
	PatchSuccess        PatchStatus = "SUCCESS"
	PatchPartialFailure PatchStatus = "PARTIAL_FAILURE"
)
