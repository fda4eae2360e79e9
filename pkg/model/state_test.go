package model

import (
	"errors"
	"testing"
)

func TestSubmissionState_Rank(t *testing.T) {
	want := []SubmissionState{
		StateUnsubmitted,
		StateSubmitted,
		StateFailedImported,
		StatePassedImported,
		StateCheckedOut,
		StateTested,
		StateFeedbackGenerated,
		StateFeedbackPublished,
		StateFailed,
		StatePassed,
	}
	for i, s := range want {
		if got := s.Rank(); got != i {
			t.Errorf("SubmissionState(%q).Rank() = %d, want %d", s, got, i)
		}
	}
	got := SubmissionStates()
	if len(got) != len(want) {
		t.Fatalf("SubmissionStates() has %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SubmissionStates()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if r := SubmissionState("BOGUS").Rank(); r != -1 {
		t.Errorf("unknown state rank = %d, want -1", r)
	}
}

func TestSubmissionState_Less(t *testing.T) {
	tests := []struct {
		a, b SubmissionState
		less bool
	}{
		{StateUnsubmitted, StateSubmitted, true},
		{StateFailedImported, StatePassedImported, true},
		{StatePassedImported, StateCheckedOut, true},
		{StateFeedbackPublished, StateFailed, true},
		{StateFailed, StatePassed, true},
		{StatePassed, StateFailed, false},
		{StateTested, StateTested, false},
		{StateCheckedOut, StateSubmitted, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.less {
			t.Errorf("%s.Less(%s) = %v, want %v", tt.a, tt.b, got, tt.less)
		}
	}
}

func TestSubmissionState_IsTerminal(t *testing.T) {
	for _, s := range SubmissionStates() {
		want := s == StateFailed || s == StatePassed
		if got := s.IsTerminal(); got != want {
			t.Errorf("SubmissionState(%q).IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestIsResubmission(t *testing.T) {
	tests := []struct {
		old, next SubmissionState
		want      bool
	}{
		{StateFailed, StateSubmitted, true},
		{StateFailedImported, StateSubmitted, true},
		{StatePassed, StateSubmitted, false},
		{StatePassedImported, StateSubmitted, false},
		{StateFailed, StateUnsubmitted, false},
		{StateTested, StateSubmitted, false},
	}
	for _, tt := range tests {
		if got := IsResubmission(tt.old, tt.next); got != tt.want {
			t.Errorf("IsResubmission(%s, %s) = %v, want %v", tt.old, tt.next, got, tt.want)
		}
	}
}

func TestParseSubmissionState(t *testing.T) {
	s, err := ParseSubmissionState("feedback_generated")
	if err != nil {
		t.Fatalf("ParseSubmissionState: %v", err)
	}
	if s != StateFeedbackGenerated {
		t.Errorf("got %q, want %q", s, StateFeedbackGenerated)
	}

	_, err = ParseSubmissionState("DONE")
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if ise.Name != "DONE" {
		t.Errorf("Name = %q, want DONE", ise.Name)
	}
}

func TestFromWorkflowState(t *testing.T) {
	tests := []struct {
		workflow string
		grade    string
		want     SubmissionState
	}{
		{"submitted", "", StateSubmitted},
		{"pending_review", "", StateSubmitted},
		{"graded", "complete", StatePassedImported},
		{"graded", "pass", StatePassedImported},
		{"graded", "7.5", StatePassedImported},
		{"graded", "0", StateFailedImported},
		{"graded", "incomplete", StateFailedImported},
		{"graded", "", StateFailedImported},
		{"unsubmitted", "", StateUnsubmitted},
		{"", "", StateUnsubmitted},
	}
	for _, tt := range tests {
		if got := FromWorkflowState(tt.workflow, tt.grade); got != tt.want {
			t.Errorf("FromWorkflowState(%q, %q) = %s, want %s", tt.workflow, tt.grade, got, tt.want)
		}
	}
}

func TestNextPhase(t *testing.T) {
	tests := []struct {
		state SubmissionState
		phase Phase
	}{
		{StateSubmitted, PhaseDownloading},
		{StateCheckedOut, PhaseTesting},
		{StateTested, PhaseEvaluation},
		{StateFeedbackGenerated, PhasePublishing},
		{StateFeedbackPublished, PhaseFinishing},
	}
	for _, tt := range tests {
		got, err := NextPhase(tt.state)
		if err != nil {
			t.Errorf("NextPhase(%s): unexpected error %v", tt.state, err)
			continue
		}
		if got != tt.phase {
			t.Errorf("NextPhase(%s) = %s, want %s", tt.state, got, tt.phase)
		}
	}

	for _, s := range []SubmissionState{StateUnsubmitted, StateFailedImported, StatePassedImported, StateFailed, StatePassed} {
		_, err := NextPhase(s)
		var ute *UnsupportedTransitionError
		if !errors.As(err, &ute) {
			t.Errorf("NextPhase(%s): expected UnsupportedTransitionError, got %v", s, err)
			continue
		}
		if ute.State != s {
			t.Errorf("UnsupportedTransitionError.State = %s, want %s", ute.State, s)
		}
	}
}

func TestFormatRank(t *testing.T) {
	if got := FormatRank(StateTested); got != "TESTED(5)" {
		t.Errorf("FormatRank = %q, want TESTED(5)", got)
	}
}
