package timeoff

import (
	"context"
	"fmt"
)

// DefaultMaxEscalationDepth is the number of supervisors a request climbs
// when no depth is configured.
const DefaultMaxEscalationDepth = 3

// Directory answers "who does this employee report to".
type Directory interface {
	// SupervisorOf returns nil when the employee has no supervisor.
	SupervisorOf(ctx context.Context, employeeID string) (*Approver, error)
}

// SupervisorChain walks the reports-to relation from requesterID and
// returns at most maxDepth approvers, nearest first. The walk stops at the
// first employee without a supervisor or when a cycle is detected.
func SupervisorChain(ctx context.Context, dir Directory, requesterID string, maxDepth int) ([]Approver, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxEscalationDepth
	}

	seen := map[string]bool{requesterID: true}
	chain := make([]Approver, 0, maxDepth)
	current := requesterID

	for len(chain) < maxDepth {
		sup, err := dir.SupervisorOf(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("resolve supervisor of %s: %w", current, err)
		}
		if sup == nil || sup.ID == "" || seen[sup.ID] {
			break
		}
		seen[sup.ID] = true
		chain = append(chain, *sup)
		current = sup.ID
	}
	return chain, nil
}
