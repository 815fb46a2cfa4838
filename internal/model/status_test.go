package model

import "testing"

func TestValidateSaveTransition(t *testing.T) {
	tests := []struct {
		from, to SaveStatus
		ok       bool
	}{
		{SaveStatusIdle, SaveStatusSaving, true},
		{SaveStatusSaving, SaveStatusSaved, true},
		{SaveStatusSaving, SaveStatusError, true},
		{SaveStatusSaved, SaveStatusSaving, true},
		{SaveStatusError, SaveStatusSaving, true},
		{SaveStatusSaving, SaveStatusIdle, true},
		{SaveStatusError, SaveStatusIdle, true},
		{SaveStatusIdle, SaveStatusSaved, false},
		{SaveStatusIdle, SaveStatusError, false},
		{SaveStatusSaved, SaveStatusError, false},
		{SaveStatusSaving, SaveStatusSaving, false},
		{"bogus", SaveStatusSaving, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateSaveTransition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Errorf("expected transition to be valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected transition to be rejected")
			}
		})
	}
}

func TestIsSaveSettled(t *testing.T) {
	for s, want := range map[SaveStatus]bool{
		SaveStatusIdle:   false,
		SaveStatusSaving: false,
		SaveStatusSaved:  true,
		SaveStatusError:  true,
	} {
		if got := IsSaveSettled(s); got != want {
			t.Errorf("IsSaveSettled(%q) = %v, want %v", s, got, want)
		}
	}
}
