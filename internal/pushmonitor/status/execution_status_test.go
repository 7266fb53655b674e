package status

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ExecutionStatus
		want     bool
	}{
		{NotCreated, Started, true},
		{Started, EndOfPushReceived, true},
		{Started, Completed, true},
		{Started, Error, true},
		{EndOfPushReceived, Completed, true},
		{EndOfPushReceived, Error, true},
		{Completed, Archived, false},
		{Error, Archived, false},
		{Completed, Started, false},
		{Error, Started, false},
		{Completed, Completed, false},
		{Error, Error, false},
		{Archived, Started, false},
		{NotCreated, Completed, false},
	}

	for _, c := range cases {
		got := CanTransition(c.from, c.to)
		if got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []ExecutionStatus{Completed, Error, Archived} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ExecutionStatus{NotCreated, Started, EndOfPushReceived} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
