package workflows

import (
	"go.temporal.io/sdk/workflow"
)

// JoinBarrier waits for a set of futures to become terminal. Each member's
// callback runs as soon as that member settles, so a slow member never delays
// reporting the others; Wait itself returns only once every member has settled.
//
// Members are added before the first call to Wait.
type JoinBarrier struct {
	selector workflow.Selector
	total    int
	done     int
}

// NewJoinBarrier creates an empty barrier.
func NewJoinBarrier(ctx workflow.Context) *JoinBarrier {
	return &JoinBarrier{selector: workflow.NewSelector(ctx)}
}

// Add registers a member and the callback that folds its result.
func (b *JoinBarrier) Add(f workflow.Future, onSettled func(workflow.Future)) {
	b.total++
	b.selector.AddFuture(f, func(f workflow.Future) {
		b.done++
		if onSettled != nil {
			onSettled(f)
		}
	})
}

// Wait blocks until every member has settled.
func (b *JoinBarrier) Wait(ctx workflow.Context) error {
	for b.done < b.total {
		b.selector.Select(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Done is the number of settled members.
func (b *JoinBarrier) Done() int { return b.done }

// Total is the number of members.
func (b *JoinBarrier) Total() int { return b.total }
