package schedule

import (
	"fmt"

	"github.com/msageha/challenge_editor/internal/model"
)

// ValidateSchedule reports every structural problem of a phase list:
// missing or duplicate IDs, self references, unknown and forward
// predecessors, and predecessor cycles. It returns nil when the list is
// clean. Resolve tolerates all of these; this is the strict view.
func ValidateSchedule(phases []model.Phase) *ValidationErrors {
	errs := &ValidationErrors{}

	position := make(map[string]int, len(phases))
	for i, p := range phases {
		field := fmt.Sprintf("phases[%d]", i)
		if p.PhaseID == "" {
			errs.Add(field+".phase_id", "is required")
			continue
		}
		if first, dup := position[p.PhaseID]; dup {
			errs.Add(field+".phase_id", fmt.Sprintf("duplicate of phases[%d] (%q)", first, p.PhaseID))
			continue
		}
		position[p.PhaseID] = i
	}

	for i, p := range phases {
		if p.Predecessor == "" {
			continue
		}
		field := fmt.Sprintf("phases[%d].predecessor", i)
		switch at, ok := position[p.Predecessor]; {
		case p.Predecessor == p.PhaseID:
			errs.Add(field, "self-reference is not allowed")
		case !ok:
			errs.Add(field, fmt.Sprintf("references unknown phase %q", p.Predecessor))
		case at > i:
			errs.Add(field, fmt.Sprintf("references later phase %q at phases[%d]", p.Predecessor, at))
		}
	}

	names, edges := predecessorEdges(phases)
	if _, err := sortDAG(names, edges); err != nil {
		errs.Add("phases", err.Error())
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
