package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced course, exercise or
	// submission does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedExercise is returned when an exercise cannot be checked
	// out: it is not a git repository exercise, has no grading path, or the
	// submission carries no repository URL.
	ErrUnsupportedExercise = errors.New("exercise does not support checkout")

	// ErrCheckoutExists is returned when the checkout directory for a
	// submission is already present on disk.
	ErrCheckoutExists = errors.New("checkout directory already exists")

	// ErrMissingCredential is returned when an external collaborator needs a
	// token or API key that has not been configured.
	ErrMissingCredential = errors.New("missing credential")

	// ErrEmptyFeedback is returned when a feedback file has no review text.
	ErrEmptyFeedback = errors.New("feedback has no review")

	// ErrSubmissionConflict is returned when an incoming submission id is
	// already stored for a different exercise.
	ErrSubmissionConflict = errors.New("submission id used by another exercise")
)

// UnsupportedTransitionError is returned when a submission's state has no
// successor phase.
type UnsupportedTransitionError struct {
	State SubmissionState
}

func (e *UnsupportedTransitionError) Error() string {
	return fmt.Sprintf("unsupported transition: no phase follows state %s", e.State)
}

// InvalidStateError is returned for unknown state names.
type InvalidStateError struct {
	Name string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid submission state %q", e.Name)
}

// InvalidResetError is returned when a reset would move a submission forward.
type InvalidResetError struct {
	ID     int64
	From   SubmissionState
	Target SubmissionState
}

func (e *InvalidResetError) Error() string {
	return fmt.Sprintf("cannot reset submission %d from %s to later state %s", e.ID, e.From, e.Target)
}

// PhaseError wraps a failure of an external collaborator during a phase.
// The submission's persisted state is left unchanged when it is returned.
type PhaseError struct {
	Phase        Phase
	SubmissionID int64
	Err          error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s failed for submission %d: %v", e.Phase, e.SubmissionID, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
