package model

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ChallengeIDPrefix starts every generated challenge id.
const ChallengeIDPrefix = "chl"

var challengeIDPattern = regexp.MustCompile(`^chl-[0-9]{8}-[0-9a-f]{8}$`)

// NewChallengeID returns an id such as chl-20260504-1a2b3c4d: the UTC day
// the draft was created, then eight random hex digits. The result is a
// valid storage key for every store backend.
func NewChallengeID(now time.Time) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("challenge id: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", ChallengeIDPrefix, now.UTC().Format("20060102"), hex.EncodeToString(u[:4])), nil
}

// IsChallengeID reports whether id has the generated format. Drafts may
// carry other ids; this only identifies ones NewChallengeID produced.
func IsChallengeID(id string) bool {
	return challengeIDPattern.MatchString(id)
}
