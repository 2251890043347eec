package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/model"
)

const (
	// TaskSubject is the queue subject onboarding tasks are dispatched on.
	TaskSubject = "onboarder.tasks"

	// TaskQueueGroup makes concurrent workers share the subject without
	// double-processing.
	TaskQueueGroup = "onboarder-workers"

	// taskRunTimeout bounds one full onboarding run, device I/O included.
	taskRunTimeout = 10 * time.Minute
)

// Listener consumes task messages off NATS and hands them to the
// orchestrator, bounded by the concurrency limiter.
type Listener struct {
	orchestrator *Orchestrator
	conn         *nats.Conn
	limiter      *Limiter
	logger       *logrus.Logger

	subscription *nats.Subscription
}

func NewListener(orchestrator *Orchestrator, conn *nats.Conn, concurrency int, logger *logrus.Logger) *Listener {
	return &Listener{
		orchestrator: orchestrator,
		conn:         conn,
		limiter:      NewLimiter(concurrency),
		logger:       logger,
	}
}

// Listen subscribes to the task subject and processes messages until ctx is
// canceled, then drains in-flight tasks.
func (l *Listener) Listen(ctx context.Context) error {
	subscription, err := l.conn.QueueSubscribe(TaskSubject, TaskQueueGroup, func(msg *nats.Msg) {
		l.handle(ctx, msg)
	})
	if err != nil {
		return errors.Wrap(err, "subscribing to task subject")
	}

	l.subscription = subscription

	l.logger.WithFields(logrus.Fields{
		"subject": TaskSubject,
		"queue":   TaskQueueGroup,
	}).Info("listening for onboarding tasks")

	<-ctx.Done()

	if err := l.subscription.Unsubscribe(); err != nil {
		l.logger.WithError(err).Warn("unsubscribing from task subject")
	}

	l.limiter.StopWait()

	return nil
}

func (l *Listener) handle(ctx context.Context, msg *nats.Msg) {
	var taskMsg model.TaskMessage

	if err := json.Unmarshal(msg.Data, &taskMsg); err != nil {
		l.logger.WithError(err).Error("dropping undecodable task message")
		return
	}

	err := l.limiter.Dispatch(func() {
		runCtx, cancel := context.WithTimeout(ctx, taskRunTimeout)
		defer cancel()

		// The message carried the credentials; the task record never
		// sees them.
		if err := l.orchestrator.Process(runCtx, taskMsg.TaskID, taskMsg.Credentials); err != nil {
			l.logger.WithError(err).WithFields(logrus.Fields{"task": taskMsg.TaskID}).Error("task processing error")
		}
	})
	if err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{"task": taskMsg.TaskID}).Warn("task dispatch rejected")

		if nakErr := msg.Nak(); nakErr != nil {
			l.logger.WithError(nakErr).Debug("message nak")
		}
	}
}
