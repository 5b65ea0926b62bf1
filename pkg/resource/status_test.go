package resource

import "testing"

// TestParseStatus tests status marker parsing
func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"pending", StatusPending},
		{"complete", StatusComplete},
		{"error", StatusError},
		{"", StatusUnknown},
		{"comp", StatusUnknown},
		{"COMPLETE", StatusUnknown},
		{"complete\n", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus([]byte(tt.raw)); got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

// TestStatusIsTerminal tests terminal state classification
func TestStatusIsTerminal(t *testing.T) {
	if !StatusComplete.IsTerminal() || !StatusError.IsTerminal() {
		t.Error("complete and error must be terminal")
	}
	if StatusPending.IsTerminal() || StatusUnknown.IsTerminal() {
		t.Error("pending and unknown must not be terminal")
	}
}

// TestStatusValidate tests that only persistable tokens validate
func TestStatusValidate(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusComplete, StatusError} {
		if err := s.Validate(); err != nil {
			t.Errorf("expected %s to validate: %v", s, err)
		}
	}
	if err := StatusUnknown.Validate(); err == nil {
		t.Error("unknown must not validate as persistable")
	}
	if err := Status("done").Validate(); err == nil {
		t.Error("foreign token must not validate")
	}
}
