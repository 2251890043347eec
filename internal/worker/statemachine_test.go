package worker

import (
	"context"
	"testing"

	sw "github.com/filanov/stateswitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/net-toolbox/onboarder/internal/model"
	"github.com/net-toolbox/onboarder/internal/store"
)

func TestTaskStateMachine(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name       string
		from       sw.State
		transition sw.TransitionType
		to         sw.State
		wantErr    bool
	}{
		{"pending to running", model.StatusPending, TransitionRun, model.StatusRunning, false},
		{"running to succeeded", model.StatusRunning, TransitionSucceed, model.StatusSucceeded, false},
		{"running to failed", model.StatusRunning, TransitionFail, model.StatusFailed, false},
		{"pending to failed", model.StatusPending, TransitionFail, model.StatusFailed, false},
		{"pending to skipped", model.StatusPending, TransitionSkip, model.StatusSkipped, false},
		{"running to skipped", model.StatusRunning, TransitionSkip, model.StatusSkipped, false},
		{"pending cannot succeed", model.StatusPending, TransitionSucceed, model.StatusPending, true},
		{"succeeded is terminal", model.StatusSucceeded, TransitionFail, model.StatusSucceeded, true},
		{"failed cannot run", model.StatusFailed, TransitionRun, model.StatusFailed, true},
	}

	for _, tc := range testcases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			storage := store.NewMemStore()

			task := model.NewTask("192.0.2.1", "lab")
			task.Status = tc.from
			require.NoError(t, storage.Add(ctx, task))

			sm := newTaskStateMachine()
			err := sm.Run(tc.transition, &task, transitionArgs{ctx: ctx, storage: storage})

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.to, task.Status)

			// Successful transitions persist the new status.
			stored, serr := storage.ByID(ctx, task.ID)
			require.NoError(t, serr)

			if tc.wantErr {
				assert.Equal(t, tc.from, stored.Status)
			} else {
				assert.Equal(t, tc.to, stored.Status)
			}
		})
	}
}
