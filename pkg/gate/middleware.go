package gate

import (
	"context"

	"github.com/toolgate/toolgate/pkg/security"
)

// Stage is one step of the gate pipeline. A stage returns nil to pass the
// call to the next stage, or a terminal outcome to stop evaluation. The
// final stage (authorization resolution) always returns an outcome.
type Stage func(ctx context.Context, call Call) *Outcome

// Pipeline is an ordered stage list composed once at startup
type Pipeline []Stage

// Evaluate runs the call through each stage in order. The first non-nil
// outcome wins. Falling through every stage means execute.
func (p Pipeline) Evaluate(ctx context.Context, call Call) Outcome {
	for _, stage := range p {
		if outcome := stage(ctx, call); outcome != nil {
			return *outcome
		}
	}
	return executeOutcome(security.LevelLow)
}
