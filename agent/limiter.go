package agent

import (
	"github.com/hupe1980/cmdmesh/core"
)

// callBudget bounds the model turns of one run. A run owns its budget, so
// no locking is needed.
type callBudget struct {
	agent string
	tier  Tier
	max   int
	used  int
}

func newCallBudget(agent string, tier Tier, max int) *callBudget {
	return &callBudget{agent: agent, tier: tier, max: max}
}

// take accounts for one model turn. It fails once more than max turns were
// requested; a max of 0 is unlimited.
func (b *callBudget) take() error {
	b.used++
	if b.max > 0 && b.used > b.max {
		return core.Errorf(core.ErrCodeBackendFailed, "agent %s (%s) exceeded %d model calls in one run", b.agent, b.tier, b.max)
	}
	return nil
}
