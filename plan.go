package dagrator

import (
	"fmt"

	"github.com/google/uuid"
)

// TargetKind selects how a Target is interpreted.
type TargetKind int

const (
	// TargetAll means every migration: the whole frontier when applying,
	// nothing left applied when reverting.
	TargetAll TargetKind = iota
	// TargetTo makes the target migration the end state: applying it applies
	// its ancestors too, reverting to it keeps it applied and reverts its
	// descendants.
	TargetTo
	// TargetBefore stops just short of the target: applying applies only its
	// ancestors, reverting also reverts the target itself.
	TargetBefore
)

// Target names the state a Migrator should move the store to.
type Target struct {
	Kind TargetKind
	ID   uuid.UUID
}

// All targets every registered migration.
var All = Target{Kind: TargetAll}

// To returns a target ending at (and including) id.
func To(id uuid.UUID) Target {
	return Target{Kind: TargetTo, ID: id}
}

// Before returns a target ending just before id.
func Before(id uuid.UUID) Target {
	return Target{Kind: TargetBefore, ID: id}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetTo:
		return t.ID.String()
	case TargetBefore:
		return "before " + t.ID.String()
	default:
		return "all"
	}
}

// Step is one migration to run in a given direction.
type Step[M Migration] struct {
	Migration M
	Direction Direction
}

func (s Step[M]) String() string {
	return fmt.Sprintf("%s %s (%s)", s.Direction, s.Migration.ID(), s.Migration.Description())
}

// Plan is the ordered list of steps bringing the store to a target.
type Plan[M Migration] []Step[M]

// IDs returns the migration IDs of the plan in execution order.
func (p Plan[M]) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p))
	for i, s := range p {
		ids[i] = s.Migration.ID()
	}
	return ids
}

// State is the lifecycle state of a single Migrator run.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateExecuting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Result reports what a run did. When State is StateFailed, Failed is the step
// that stopped execution and Remaining lists the steps that never ran; steps in
// Completed stay applied or reverted.
type Result[M Migration] struct {
	Target    Target
	State     State
	Plan      Plan[M]
	Completed []Step[M]
	Failed    *Step[M]
	Remaining []Step[M]
}
