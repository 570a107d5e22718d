// Package worker consumes job trigger messages and drives the engine.
package worker

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/castrometro/SGM-sub005/internal/payroll/service"
	"github.com/castrometro/SGM-sub005/pkg/errors"
	"github.com/castrometro/SGM-sub005/pkg/logger"
	"github.com/castrometro/SGM-sub005/pkg/messaging"
)

// JobConsumer turns queued job triggers into engine runs. Triggers that lose
// the per-closure lock are requeued by the messaging layer, so they run once
// the in-flight job finishes.
type JobConsumer struct {
	consumer  *messaging.Consumer
	jobs      *service.JobService
	validator *validator.Validate
	logger    *logger.Logger
}

// NewJobConsumer wires the engine job queue to the job service.
func NewJobConsumer(rmq *messaging.RabbitMQ, jobs *service.JobService, log *logger.Logger) (*JobConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, messaging.QueuePayrollJobs, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangePayrollJobs, messaging.EventJobTriggered); err != nil {
		return nil, err
	}

	jc := &JobConsumer{
		consumer:  consumer,
		jobs:      jobs,
		validator: validator.New(),
		logger:    log.WithComponent("job-consumer"),
	}
	consumer.RegisterHandler(messaging.EventJobTriggered, jc.handleJobTriggered)
	return jc, nil
}

// Start begins consuming job triggers until the context is cancelled.
func (c *JobConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *JobConsumer) handleJobTriggered(ctx context.Context, event *messaging.Event) error {
	var trigger messaging.JobTriggerEvent
	if err := event.UnmarshalData(&trigger); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("malformed job trigger")
		return nil
	}
	if err := c.validator.Struct(trigger); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("invalid job trigger, dropping")
		return nil
	}

	err := c.jobs.Run(ctx, trigger.ClosureID, trigger.Reason)
	if errors.Is(err, errors.ErrConcurrentJobConflict) {
		c.logger.Info().
			Str("closure_id", trigger.ClosureID).
			Str("reason", trigger.Reason).
			Msg("closure busy, trigger goes back to the queue")
		return err
	}
	return err
}
