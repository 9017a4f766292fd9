package models

import "testing"

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name         string
		quizScore    int
		focusMinutes int
		expected     string
	}{
		{"both at threshold", 7, 60, StatusOnTrack},
		{"both above threshold", 10, 120, StatusOnTrack},
		{"quiz below threshold", 6, 60, StatusPendingReview},
		{"focus below threshold", 7, 59, StatusPendingReview},
		{"both below threshold", 3, 20, StatusPendingReview},
		{"zero scores", 0, 0, StatusPendingReview},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.quizScore, tc.focusMinutes)
			if got != tc.expected {
				t.Errorf("DeriveStatus(%d, %d) = %q, want %q", tc.quizScore, tc.focusMinutes, got, tc.expected)
			}
		})
	}
}

func TestStatusLabel(t *testing.T) {
	if got := StatusLabel(StatusOnTrack); got != "On Track" {
		t.Errorf("Expected 'On Track', got %q", got)
	}
	if got := StatusLabel(StatusPendingReview); got != "Pending Mentor Review" {
		t.Errorf("Expected 'Pending Mentor Review', got %q", got)
	}
}
