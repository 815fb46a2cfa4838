package schedule

import (
	"math"
	"time"
)

const (
	MinPhaseDuration = 1        // minutes
	MaxPhaseDuration = 720 * 60 // minutes (720 hours)
)

// Bounds is the inclusive duration policy, in minutes.
type Bounds struct {
	Min int
	Max int
}

func DefaultBounds() Bounds {
	return Bounds{Min: MinPhaseDuration, Max: MaxPhaseDuration}
}

// BoundsFromHours builds Bounds from the config's minute/hour fields,
// falling back to the defaults for non-positive values.
func BoundsFromHours(minMinutes, maxHours int) Bounds {
	b := DefaultBounds()
	if minMinutes > 0 {
		b.Min = minMinutes
	}
	if maxHours > 0 {
		b.Max = maxHours * 60
	}
	if b.Min > b.Max {
		b.Min = b.Max
	}
	return b
}

// Clamp truncates minutes toward zero and clamps the result into [Min, Max].
// NaN clamps to Min.
func (b Bounds) Clamp(minutes float64) int {
	if math.IsNaN(minutes) || minutes < float64(b.Min) {
		return b.Min
	}
	if minutes > float64(b.Max) {
		return b.Max
	}
	v := int(math.Trunc(minutes))
	if v < b.Min {
		return b.Min
	}
	return v
}

func ClampDuration(minutes float64) int {
	return DefaultBounds().Clamp(minutes)
}

func AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

func MinutesToSeconds(minutes int) int64 {
	return int64(minutes) * 60
}

// SecondsToMinutes truncates partial minutes.
func SecondsToMinutes(seconds int64) int {
	return int(seconds / 60)
}

func DaysToMinutes(days int) int {
	return days * 24 * 60
}
