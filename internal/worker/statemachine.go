package worker

import (
	"context"

	sw "github.com/filanov/stateswitch"
	"github.com/pkg/errors"

	"github.com/net-toolbox/onboarder/internal/model"
	"github.com/net-toolbox/onboarder/internal/store"
)

// Task state machine transition types.
const (
	TransitionRun     sw.TransitionType = "run"
	TransitionSucceed sw.TransitionType = "succeed"
	TransitionFail    sw.TransitionType = "fail"
	TransitionSkip    sw.TransitionType = "skip"
)

var ErrInvalidTransitionArgs = errors.New("expected a transitionArgs{} type argument")

// transitionArgs carry the storage handle into transition callbacks.
type transitionArgs struct {
	ctx     context.Context
	storage store.Storage
}

// persistTask saves the task after every successful transition, so observers
// of the store never see a status the machine did not reach.
func persistTask(state sw.StateSwitch, args sw.TransitionArgs) error {
	task, ok := state.(*model.Task)
	if !ok {
		return errors.Wrap(ErrInvalidTransitionArgs, "expected a *model.Task state")
	}

	targs, ok := args.(transitionArgs)
	if !ok {
		return ErrInvalidTransitionArgs
	}

	return targs.storage.Update(targs.ctx, *task)
}

// newTaskStateMachine returns the machine enforcing the task status
// lifecycle: pending to running, and from either to exactly one terminal
// status. Failure and skip are reachable from pending so defects caught
// before any network I/O still terminate the task.
func newTaskStateMachine() sw.StateMachine {
	sm := sw.NewStateMachine()

	sm.AddTransition(sw.TransitionRule{
		TransitionType:   TransitionRun,
		SourceStates:     sw.States{model.StatusPending},
		DestinationState: model.StatusRunning,
		PostTransition:   persistTask,
	})

	sm.AddTransition(sw.TransitionRule{
		TransitionType:   TransitionSucceed,
		SourceStates:     sw.States{model.StatusRunning},
		DestinationState: model.StatusSucceeded,
		PostTransition:   persistTask,
	})

	sm.AddTransition(sw.TransitionRule{
		TransitionType:   TransitionFail,
		SourceStates:     sw.States{model.StatusPending, model.StatusRunning},
		DestinationState: model.StatusFailed,
		PostTransition:   persistTask,
	})

	sm.AddTransition(sw.TransitionRule{
		TransitionType:   TransitionSkip,
		SourceStates:     sw.States{model.StatusPending, model.StatusRunning},
		DestinationState: model.StatusSkipped,
		PostTransition:   persistTask,
	})

	return sm
}
