package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/jzx17/syncqueue/pkg/types"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		valid    bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusPending, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusProcessing, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusCompleted, false},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.valid && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.valid && !errors.Is(err, types.ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.to, err)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, status.IsTerminal(), want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"NORMAL", PriorityNormal, false},
		{"", PriorityNormal, false},
		{" High ", PriorityHigh, false},
		{"critical", PriorityCritical, false},
		{"urgent", PriorityNormal, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.String() == "UNKNOWN" {
			t.Errorf("%q parsed to an unnamed priority", tt.in)
		}
	}

	if Priority(42).String() != "UNKNOWN" || Priority(42).Valid() {
		t.Error("out of range priority should be unknown and invalid")
	}
}

func TestWorkItem_ProcessingTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)

	w := WorkItem[int, int]{StartedAt: &start}
	if w.ProcessingTime() != 0 {
		t.Errorf("expected 0 without CompletedAt, got %v", w.ProcessingTime())
	}

	w.CompletedAt = &end
	if w.ProcessingTime() != 1500*time.Millisecond {
		t.Errorf("ProcessingTime() = %v, want 1.5s", w.ProcessingTime())
	}
}

func TestWorkItem_TransitionRejectsInvalid(t *testing.T) {
	w := &WorkItem[int, int]{ID: "a", Status: StatusCompleted}
	err := w.transition(StatusProcessing)
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if w.Status != StatusCompleted {
		t.Errorf("status changed on invalid transition: %s", w.Status)
	}
}
