package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewChallengeID(t *testing.T) {
	now := time.Date(2026, 5, 4, 23, 30, 0, 0, time.FixedZone("JST", 9*3600))
	id, err := NewChallengeID(now)
	if err != nil {
		t.Fatalf("NewChallengeID: %v", err)
	}
	if !IsChallengeID(id) {
		t.Errorf("generated id %q does not match the challenge id format", id)
	}
	if !strings.HasPrefix(id, "chl-20260504-") {
		t.Errorf("id %q should carry the UTC creation day", id)
	}
}

func TestNewChallengeID_Uniqueness(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewChallengeID(now)
		if err != nil {
			t.Fatalf("NewChallengeID: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestIsChallengeID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"generated", "chl-20260504-a3f2b7c1", true},
		{"wrong prefix", "tpl-20260504-a3f2b7c1", false},
		{"short date", "chl-2026054-a3f2b7c1", false},
		{"uppercase hex", "chl-20260504-A3F2B7C1", false},
		{"free-form", "spring-marathon", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsChallengeID(tt.id); got != tt.valid {
				t.Errorf("IsChallengeID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}
