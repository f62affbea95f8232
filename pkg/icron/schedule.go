package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as "@every 2s".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func Parse(expr string) (cron.Schedule, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// UntilNext returns how long after refTime the schedule fires next.
func UntilNext(expr string, refTime time.Time) (time.Duration, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return 0, err
	}
	return schedule.Next(refTime).Sub(refTime), nil
}

// Schedule runs fn on expr until stop is called. stop waits for a running
// fn to return. Overlapping runs are skipped.
func Schedule(expr string, fn func()) (stop func(), err error) {
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(expr, fn); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
