package supervisor

import "testing"

func TestCanTransition_HappyPath(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateCreating, StateStarting, true},
		{StateStarting, StateRunning, true},
		{StateRunning, StateWorking, true},
		{StateWorking, StateIdle, true},
		{StateIdle, StateWorking, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateCreating, StateRunning, false},
		{StateStopped, StateRunning, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanTransition_ErrorReachableFromAnyNonTerminalState(t *testing.T) {
	for _, s := range []State{StateCreating, StateStarting, StateRunning, StateWorking, StateIdle, StateStopping} {
		if !canTransition(s, StateError) {
			t.Errorf("expected %s -> error to be reachable", s)
		}
	}
	if canTransition(StateStopped, StateError) {
		t.Error("stopped is terminal, should not transition to error")
	}
	if canTransition(StateError, StateError) {
		t.Error("error -> error should not be a legal transition")
	}
}
