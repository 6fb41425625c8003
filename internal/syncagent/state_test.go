package syncagent

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		from State
		sig  Signal
		want State
	}{
		{Connecting, Dialed, Open},
		{Connecting, DialFailed, Reconnecting},
		{Open, Lost, Reconnecting},
		{Reconnecting, DelayElapsed, Connecting},

		{Connecting, Lost, Connecting},
		{Open, Dialed, Open},
		{Open, DelayElapsed, Open},
		{Reconnecting, Dialed, Reconnecting},
		{Reconnecting, Lost, Reconnecting},
	}

	for _, tt := range tests {
		if got := Transition(tt.from, tt.sig); got != tt.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", tt.from, tt.sig, got, tt.want)
		}
	}
}
