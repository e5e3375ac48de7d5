package cron

import (
	"context"
	"fmt"
)

type pendingDispatcher interface {
	DispatchPending(ctx context.Context) (int, error)
}

// NewFulfillmentJob wraps the fulfillment dispatcher as a cron job.
func NewFulfillmentJob(dispatcher pendingDispatcher) (Job, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	return &fulfillmentJob{dispatcher: dispatcher}, nil
}

type fulfillmentJob struct {
	dispatcher pendingDispatcher
}

func (j *fulfillmentJob) Name() string { return "fulfillment-dispatch" }

func (j *fulfillmentJob) Run(ctx context.Context) error {
	_, err := j.dispatcher.DispatchPending(ctx)
	return err
}
