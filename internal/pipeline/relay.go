package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"
)

// ErrStageStopped is the cancellation cause handed to the remaining stages
// once one stage has returned.
var ErrStageStopped = errors.New("relay stage stopped")

// Runner is a long-lived stage of the relay.
type Runner interface {
	Run(ctx context.Context) error
}

// Stage pairs a Runner with the name used in logs and errors.
type Stage struct {
	Name   string
	Runner Runner
}

// Relay runs its stages concurrently. Its lifetime is that of the first stage
// to return: that stage's result becomes the relay's result and the others are
// cancelled through the shared context.
type Relay struct {
	stages []Stage
	log    *logger.Logger
}

// NewRelay creates a relay over the given stages.
func NewRelay(log *logger.Logger, stages ...Stage) *Relay {
	return &Relay{
		stages: stages,
		log:    log,
	}
}

// Run starts every stage and blocks until all of them have returned.
func (r *Relay) Run(ctx context.Context) error {
	stageCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	group, groupCtx := errgroup.WithContext(stageCtx)

	var (
		once     sync.Once
		firstErr error
	)

	for _, stage := range r.stages {
		group.Go(func() error {
			runErr := stage.Runner.Run(groupCtx)

			once.Do(func() {
				firstErr = r.settle(ctx, stage.Name, runErr)
				cancel(fmt.Errorf("%w: %s", ErrStageStopped, stage.Name))
			})

			return runErr
		})
	}

	_ = group.Wait()

	return firstErr
}

// settle decides what the first returning stage means for the whole relay.
// A stage unwinding because the caller cancelled ctx is a clean shutdown.
func (r *Relay) settle(ctx context.Context, name string, runErr error) error {
	if ctx.Err() != nil {
		r.log.Info("Relay shutting down: %v", context.Cause(ctx))

		return nil
	}

	if runErr != nil {
		r.log.Error("Stage '%s' failed, stopping relay: %v", name, runErr)

		return fmt.Errorf("%s stage failed: %w", name, runErr)
	}

	r.log.Info("Stage '%s' finished, stopping relay", name)

	return nil
}
