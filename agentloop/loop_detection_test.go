package agentloop

import "testing"

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name   string
		sigs   []string
		window int
		want   bool
	}{
		{"too short", []string{"a", "a"}, 3, false},
		{"disabled", []string{"a", "a", "a"}, 0, false},
		{"same action", []string{"a", "a", "a", "a"}, 4, true},
		{"alternating", []string{"a", "b", "a", "b"}, 4, true},
		{"triple", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"varied", []string{"a", "b", "c", "d"}, 4, false},
		{"only recent counted", []string{"x", "y", "a", "a", "a"}, 3, true},
		{"pattern length equals window", []string{"a", "b"}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLoop(tt.sigs, tt.window); got != tt.want {
				t.Errorf("DetectLoop = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActionSignature(t *testing.T) {
	a := Action{Name: "Google", Args: map[string]string{"query": "go", "n": "1"}}
	b := Action{Name: "google", Args: map[string]string{"n": "1", "query": "go"}}
	c := Action{Name: "google", Args: map[string]string{"query": "rust", "n": "1"}}
	if actionSignature(a) != actionSignature(b) {
		t.Error("signature depends on case or arg order")
	}
	if actionSignature(a) == actionSignature(c) {
		t.Error("different args share a signature")
	}
}
