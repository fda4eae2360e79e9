package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SubmissionState represents the grading lifecycle state of a Submission.
//
// States are persisted by name. Their relative order is defined by
// stateRank, not by declaration order.
type SubmissionState string

const (
	StateUnsubmitted       SubmissionState = "UNSUBMITTED"
	StateSubmitted         SubmissionState = "SUBMITTED"
	StateFailedImported    SubmissionState = "FAILED_IMPORTED"
	StatePassedImported    SubmissionState = "PASSED_IMPORTED"
	StateCheckedOut        SubmissionState = "CHECKED_OUT"
	StateTested            SubmissionState = "TESTED"
	StateFeedbackGenerated SubmissionState = "FEEDBACK_GENERATED"
	StateFeedbackPublished SubmissionState = "FEEDBACK_PUBLISHED"
	StateFailed            SubmissionState = "FAILED"
	StatePassed            SubmissionState = "PASSED"
)

var stateRank = map[SubmissionState]int{
	StateUnsubmitted:       0,
	StateSubmitted:         1,
	StateFailedImported:    2,
	StatePassedImported:    3,
	StateCheckedOut:        4,
	StateTested:            5,
	StateFeedbackGenerated: 6,
	StateFeedbackPublished: 7,
	StateFailed:            8,
	StatePassed:            9,
}

// SubmissionStates lists every state in ascending rank.
func SubmissionStates() []SubmissionState {
	out := make([]SubmissionState, len(stateRank))
	for s, r := range stateRank {
		out[r] = s
	}
	return out
}

// String returns the string representation of the submission state.
func (s SubmissionState) String() string {
	return string(s)
}

// Valid reports whether s is one of the known states.
func (s SubmissionState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Rank returns the position of s in the total order, or -1 for unknown states.
func (s SubmissionState) Rank() int {
	if r, ok := stateRank[s]; ok {
		return r
	}
	return -1
}

// Less reports whether s ranks strictly below other.
func (s SubmissionState) Less(other SubmissionState) bool {
	return s.Rank() < other.Rank()
}

// IsTerminal returns true once a grade has been decided locally.
func (s SubmissionState) IsTerminal() bool {
	switch s {
	case StateFailed, StatePassed:
		return true
	}
	return false
}

// IsResubmission reports whether moving from old to next is the one
// permitted backward move: a failed submission being handed in again.
func IsResubmission(old, next SubmissionState) bool {
	return (old == StateFailed || old == StateFailedImported) && next == StateSubmitted
}

// ParseSubmissionState converts a persisted or user-supplied name to a state.
// Matching is case-insensitive.
func ParseSubmissionState(name string) (SubmissionState, error) {
	s := SubmissionState(strings.ToUpper(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", &InvalidStateError{Name: name}
	}
	return s, nil
}

// FromWorkflowState maps the LMS workflow state and grade of a submission
// onto the local state model. A graded submission counts as passed when its
// grade is "complete", "pass" or a positive score.
func FromWorkflowState(workflowState, grade string) SubmissionState {
	switch workflowState {
	case "submitted", "pending_review":
		return StateSubmitted
	case "graded":
		if gradePasses(grade) {
			return StatePassedImported
		}
		return StateFailedImported
	}
	return StateUnsubmitted
}

func gradePasses(grade string) bool {
	switch strings.ToLower(strings.TrimSpace(grade)) {
	case "complete", "pass":
		return true
	case "", "incomplete", "fail":
		return false
	}
	score, err := strconv.ParseFloat(grade, 64)
	return err == nil && score > 0
}

// Phase names one step of the assessment workflow.
type Phase string

const (
	PhaseDownloading Phase = "DOWNLOADING"
	PhaseTesting     Phase = "TESTING"
	PhaseEvaluation  Phase = "EVALUATION"
	PhasePublishing  Phase = "PUBLISHING"
	PhaseFinishing   Phase = "FINISHING"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// nextPhase maps the states from which the workflow can advance to the phase
// that runs next. FAILED_IMPORTED and PASSED_IMPORTED are graded externally
// and never advance; FAILED and PASSED are final.
var nextPhase = map[SubmissionState]Phase{
	StateSubmitted:         PhaseDownloading,
	StateCheckedOut:        PhaseTesting,
	StateTested:            PhaseEvaluation,
	StateFeedbackGenerated: PhasePublishing,
	StateFeedbackPublished: PhaseFinishing,
}

// NextPhase returns the phase that advances a submission out of state s.
func NextPhase(s SubmissionState) (Phase, error) {
	if p, ok := nextPhase[s]; ok {
		return p, nil
	}
	return "", &UnsupportedTransitionError{State: s}
}

// FormatRank renders a state with its rank, e.g. "TESTED(5)".
func FormatRank(s SubmissionState) string {
	return fmt.Sprintf("%s(%d)", s, s.Rank())
}
