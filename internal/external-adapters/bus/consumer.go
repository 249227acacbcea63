package bus

import (
	"context"
	"errors"
	"net/http"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/schema"
)

// ErrRedeliver asks the bus to NAK the trigger so it is delivered again later
var ErrRedeliver = errors.New("trigger must be redelivered")

// Pipeline runs the publication pipeline for one trigger
type Pipeline interface {
	Publish(ctx context.Context, trigger entities.Trigger) entities.PipelineResult
}

// ResultPublisher emits result events
type ResultPublisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// ResultEvent is published to SubjectBuildResult for every handled trigger
type ResultEvent struct {
	BuildURL   string `json:"build_url"`
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Consumer turns trigger messages into pipeline runs
type Consumer struct {
	pipeline  Pipeline
	results   ResultPublisher
	validator *schema.Validator
	logger    interfaces.Logger
}

// NewConsumer creates a trigger consumer
func NewConsumer(pipeline Pipeline, results ResultPublisher, validator *schema.Validator, logger interfaces.Logger) *Consumer {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Consumer{pipeline: pipeline, results: results, validator: validator, logger: logger}
}

// Handle runs the pipeline for one message. A 409 result returns ErrRedeliver;
// every other result is final and the message is acknowledged.
func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	var result entities.PipelineResult
	trigger, err := c.validator.DecodeTrigger(data)
	if err != nil {
		c.logger.Warn("rejected trigger payload", interfaces.Err(err))
		result = entities.PipelineResult{StatusCode: http.StatusBadRequest, Body: schema.MsgMalformedTrigger}
	} else {
		result = c.pipeline.Publish(ctx, trigger)
	}

	event := ResultEvent{BuildURL: trigger.BuildURL, StatusCode: result.StatusCode, Body: result.Body}
	if err := c.results.Publish(ctx, SubjectBuildResult, event); err != nil {
		c.logger.Warn("failed to publish result event", interfaces.Err(err), interfaces.F("build_url", trigger.BuildURL))
	}

	if result.StatusCode == http.StatusConflict {
		return ErrRedeliver
	}
	return nil
}
