package agentloop

import (
	"strings"
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		input    string
		kind     DecisionKind
		count    int
		feedback string
		problem  string
	}{
		{"y", DecisionAuthorize, 0, "", ""},
		{"  Y  ", DecisionAuthorize, 0, "", ""},
		{"y -3", DecisionAuthorize, 3, "", ""},
		{"y --3", DecisionInvalid, 0, "", "Please enter 'y -n'"},
		{"y -x", DecisionInvalid, 0, "", "Please enter 'y -n'"},
		{"y -", DecisionInvalid, 0, "", "Please enter 'y -n'"},
		{"y - 4", DecisionInvalid, 0, "", "Please enter 'y -n'"},
		{"y -12", DecisionAuthorize, 12, "", ""},
		{"s", DecisionSelfReview, 0, "", ""},
		{"n", DecisionExit, 0, "", ""},
		{"N", DecisionExit, 0, "", ""},
		{"", DecisionInvalid, 0, "", "Invalid input format."},
		{"   ", DecisionInvalid, 0, "", "Invalid input format."},
		{"Look at the README first", DecisionFeedback, 0, "Look at the README first", ""},
		{"yes please", DecisionFeedback, 0, "yes please", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d := ParseDecision(tt.input, "y", "n")
			if d.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v (%+v)", d.Kind, tt.kind, d)
			}
			if d.Count != tt.count {
				t.Errorf("count = %d, want %d", d.Count, tt.count)
			}
			if d.Feedback != tt.feedback {
				t.Errorf("feedback = %q, want %q", d.Feedback, tt.feedback)
			}
			if !strings.Contains(d.Problem, tt.problem) {
				t.Errorf("problem = %q, want %q", d.Problem, tt.problem)
			}
		})
	}
}

func TestParseDecisionCustomKeys(t *testing.T) {
	if d := ParseDecision("ok -2", "ok", "quit"); d.Kind != DecisionAuthorize || d.Count != 2 {
		t.Errorf("ok -2 = %+v", d)
	}
	if d := ParseDecision("quit", "ok", "quit"); d.Kind != DecisionExit {
		t.Errorf("quit = %+v", d)
	}
	if d := ParseDecision("y", "ok", "quit"); d.Kind != DecisionFeedback {
		t.Errorf("y = %+v, want feedback", d)
	}
}

func TestSelfFeedbackMessage(t *testing.T) {
	msg := selfFeedbackMessage("a tester", &Thoughts{Text: "T", Reasoning: "R", Plan: "P", Progress: "G", Criticism: "C"})
	if !strings.Contains(msg, "the role of a tester.") {
		t.Errorf("role missing: %q", msg)
	}
	if !strings.HasSuffix(msg, "TRPGC") {
		t.Errorf("thoughts not appended in order: %q", msg)
	}
	if got := selfFeedbackMessage("a tester", nil); strings.Contains(got, "%") {
		t.Errorf("unformatted prompt: %q", got)
	}
}
