package collect

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/dartq/internal/filing"
)

// Task is one remote fetch: a statement for a period under a variant.
type Task struct {
	EntityID string
	Period   filing.ReportPeriod
	Variant  filing.Variant
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%s/%s", t.EntityID, t.Period, t.Variant)
}

type attempt struct {
	period  filing.ReportPeriod
	variant filing.Variant
}

func (t Task) attempt() attempt {
	return attempt{period: t.Period, variant: t.Variant}
}

// Outcome is the tagged result of a Task. A nil Err with non-empty Items is
// a success; anything else counts as absent data.
type Outcome struct {
	Task  Task
	Items []filing.LineItem
	Err   error
}

// OK reports whether the fetch produced data.
func (o Outcome) OK() bool {
	return o.Err == nil && len(o.Items) > 0
}

// fetchOne runs a single fetch under its own timeout.
func fetchOne(ctx context.Context, fetcher filing.StatementFetcher, timeout time.Duration, t Task) Outcome {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items, err := fetcher.Fetch(tctx, t.EntityID, t.Period.Year, t.Period.Kind, t.Variant)
	if err == nil && len(items) == 0 {
		err = fmt.Errorf("empty statement")
	}
	return Outcome{Task: t, Items: items, Err: err}
}

// runPool executes fn for every task with at most workers in flight. A
// failing task never cancels its siblings.
func runPool(ctx context.Context, workers int, tasks []Task, fn func(context.Context, Task) Outcome) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, t := range tasks {
		g.Go(func() error {
			outcomes[i] = fn(ctx, t)
			return nil
		})
	}
	g.Wait()
	return outcomes
}
