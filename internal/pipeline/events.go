// Package pipeline runs the apply steps for one transaction on a worker
// goroutine and streams progress events to a consumer.
package pipeline

import (
	"time"

	"relaycode/internal/domain"
)

type Substep struct {
	ID     string
	Title  string
	Status domain.StepStatus
	Error  string
}

type Step struct {
	ID       domain.StepID
	Title    string
	Status   domain.StepStatus
	Substeps []Substep
	Duration time.Duration
	Details  string
}

func (s Step) clone() Step {
	s.Substeps = append([]Substep(nil), s.Substeps...)
	return s
}

// FailedSubsteps counts substeps that ended failed.
func (s Step) FailedSubsteps() int {
	n := 0
	for _, sub := range s.Substeps {
		if sub.Status == domain.StepFailed {
			n++
		}
	}
	return n
}

// Event is one progress update. The concrete types are UpdateStep,
// AddSubstep and UpdateSubstep.
type Event interface {
	event()
}

type UpdateStep struct {
	ID       domain.StepID
	Status   domain.StepStatus
	Duration time.Duration
	Details  string
}

type AddSubstep struct {
	ParentID domain.StepID
	Substep  Substep
}

type UpdateSubstep struct {
	ParentID  domain.StepID
	SubstepID string
	Status    domain.StepStatus
	Title     string
	Error     string
}

func (UpdateStep) event()    {}
func (AddSubstep) event()    {}
func (UpdateSubstep) event() {}
