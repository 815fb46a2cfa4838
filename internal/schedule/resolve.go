// Package schedule computes challenge phase timelines and the editing
// operations that change them.
//
// A Schedule is only ever produced by a Resolver. Every operation takes the
// current Schedule and returns a new one; inputs are never mutated, so a
// Resolver may be shared by any number of callers without locking.
package schedule

import (
	"fmt"
	"time"

	"github.com/msageha/challenge_editor/internal/model"
)

// FallbackPolicy decides where a phase whose predecessor cannot be found is
// placed.
type FallbackPolicy string

const (
	// FallbackSequential places the phase after the previous phase in list order.
	FallbackSequential FallbackPolicy = "sequential"
	// FallbackBaseStart places the phase at the schedule's base start date.
	FallbackBaseStart FallbackPolicy = "base_start"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case "", FallbackSequential:
		return FallbackSequential, nil
	case FallbackBaseStart:
		return FallbackBaseStart, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q", s)
	}
}

type IssueKind string

const (
	IssueUnknownPredecessor IssueKind = "unknown_predecessor"
	IssueDuplicatePhase     IssueKind = "duplicate_phase"
)

// Issue is one structural problem found while resolving.
type Issue struct {
	Kind        IssueKind `json:"kind" yaml:"kind"`
	Index       int       `json:"index" yaml:"index"`
	PhaseID     string    `json:"phaseId" yaml:"phase_id"`
	Predecessor string    `json:"predecessor,omitempty" yaml:"predecessor,omitempty"`
	Message     string    `json:"message" yaml:"message"`
}

// Schedule is an ordered, resolved list of phases.
//
// Error holds the message of the first issue of any kind (a duplicate
// phase ID as well as a missing predecessor), and Issues holds every one of
// them in list order. Notice carries a user-facing message from the editing
// operation that produced this Schedule (for example "nothing left to add").
type Schedule struct {
	BaseStartDate time.Time     `json:"baseStartDate" yaml:"base_start_date"`
	Phases        []model.Phase `json:"phases" yaml:"phases"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	Issues        []Issue       `json:"issues,omitempty" yaml:"issues,omitempty"`
	Notice        string        `json:"notice,omitempty" yaml:"notice,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s Schedule) Clone() Schedule {
	out := s
	out.Phases = model.ClonePhases(s.Phases)
	if s.Issues != nil {
		out.Issues = append([]Issue(nil), s.Issues...)
	}
	return out
}

// EndDate returns the latest scheduled end, or the base start date for an
// empty schedule.
func (s Schedule) EndDate() time.Time {
	end := s.BaseStartDate
	for _, p := range s.Phases {
		if p.ScheduledEndDate.After(end) {
			end = p.ScheduledEndDate
		}
	}
	return end
}

type Resolver struct {
	bounds   Bounds
	fallback FallbackPolicy
	now      func() time.Time
}

type Option func(*Resolver)

func WithBounds(b Bounds) Option {
	return func(r *Resolver) { r.bounds = b }
}

func WithFallback(p FallbackPolicy) Option {
	return func(r *Resolver) { r.fallback = p }
}

// WithClock overrides the clock used when no base start date is given.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		bounds:   DefaultBounds(),
		fallback: FallbackSequential,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewResolverFromConfig builds a Resolver from the schedule section of the config.
func NewResolverFromConfig(cfg model.ScheduleConfig) (*Resolver, error) {
	policy, err := ParseFallbackPolicy(cfg.FallbackPolicy)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return NewResolver(
		WithBounds(BoundsFromHours(cfg.MinPhaseDurationMin, cfg.MaxPhaseDurationHours)),
		WithFallback(policy),
	), nil
}

func (r *Resolver) Bounds() Bounds { return r.bounds }

func (r *Resolver) Fallback() FallbackPolicy { return r.fallback }

var defaultResolver = NewResolver()

// Resolve resolves phases with the default bounds and sequential fallback.
func Resolve(phases []model.Phase, base time.Time) Schedule {
	return defaultResolver.Resolve(phases, base)
}

// Resolve computes ScheduledStartDate and ScheduledEndDate for every phase.
//
// Phases are processed strictly left to right. A phase whose predecessor has
// already been resolved starts at that predecessor's end; a phase without a
// predecessor starts at the previous phase's end (base for the first one).
// A predecessor that is not found earlier in the list never aborts
// resolution: the phase is placed according to the fallback policy and the
// problem is recorded in Error and Issues.
func (r *Resolver) Resolve(phases []model.Phase, base time.Time) Schedule {
	if base.IsZero() {
		base = r.now()
	}

	out := make([]model.Phase, 0, len(phases))
	resolved := make(map[string]model.Phase, len(phases))
	var issues []Issue

	for i, p := range phases {
		p.Duration = r.bounds.Clamp(float64(p.Duration))

		if _, dup := resolved[p.PhaseID]; dup {
			issues = append(issues, Issue{
				Kind:    IssueDuplicatePhase,
				Index:   i,
				PhaseID: p.PhaseID,
				Message: fmt.Sprintf("phase %q appears more than once; later entry wins as predecessor", p.PhaseID),
			})
		}

		start := r.previousEnd(out, base)
		if p.Predecessor != "" {
			if pred, ok := resolved[p.Predecessor]; ok {
				start = pred.ScheduledEndDate
			} else {
				if r.fallback == FallbackBaseStart {
					start = base
				}
				issues = append(issues, Issue{
					Kind:        IssueUnknownPredecessor,
					Index:       i,
					PhaseID:     p.PhaseID,
					Predecessor: p.Predecessor,
					Message: fmt.Sprintf("phase %q: predecessor %q not found before it in the schedule; placed by %s fallback",
						p.PhaseID, p.Predecessor, r.fallback),
				})
			}
		}

		p.ScheduledStartDate = start
		p.ScheduledEndDate = AddMinutes(start, p.Duration)
		out = append(out, p)
		resolved[p.PhaseID] = p
	}

	s := Schedule{BaseStartDate: base, Phases: out, Issues: issues}
	if len(issues) > 0 {
		s.Error = issues[0].Message
	}
	return s
}

func (r *Resolver) previousEnd(done []model.Phase, base time.Time) time.Time {
	if len(done) == 0 {
		return base
	}
	return done[len(done)-1].ScheduledEndDate
}
