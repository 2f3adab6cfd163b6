package tokens

import "testing"

func TestFallbackCount(t *testing.T) {
	e := &Estimator{}
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world!", 3},
	}
	for _, tt := range tests {
		if got := e.Count(tt.in); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNilEstimator(t *testing.T) {
	var e *Estimator
	if got := e.Count("abcdefgh"); got != 2 {
		t.Errorf("nil estimator Count = %d, want 2", got)
	}
}

func TestCountMessages(t *testing.T) {
	e := &Estimator{}
	got := CountMessages(e, "abcd", "abcdefgh")
	want := 1 + 2 + 2*MessageOverhead
	if got != want {
		t.Errorf("CountMessages = %d, want %d", got, want)
	}
	if got := CountMessages(e); got != 0 {
		t.Errorf("CountMessages() = %d, want 0", got)
	}
}
