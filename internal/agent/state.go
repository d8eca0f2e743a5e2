// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"fmt"

	"github.com/pkg/errors"
)

// State is a stage of the pipeline state machine.
type State int

const (
	StateDecomposing State = iota
	StateRetrieving
	StateSkillAnalyzing
	StateConcernExtracting
	StateOutlineGenerating
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateDecomposing:       "decomposing",
	StateRetrieving:        "retrieving",
	StateSkillAnalyzing:    "skill_analyzing",
	StateConcernExtracting: "concern_extracting",
	StateOutlineGenerating: "outline_generating",
	StateDone:              "done",
	StateFailed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Fatal run failures. A RunError wraps one of these or a context error.
var (
	ErrDecomposition       = errors.New("decomposition failed")
	ErrAllRetrievalsFailed = errors.New("all sub-topic retrievals failed")
	ErrOutlineGeneration   = errors.New("outline generation failed")
)

// RunError reports the stage in which a run failed.
type RunError struct {
	State State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed while %s: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
