package main

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/bus"
)

type consumeOptions struct {
	natsURL  string
	durable  string
	ackWait  time.Duration
	retained time.Duration
}

func newConsumeCommand(root *rootOptions) *cobra.Command {
	opts := &consumeOptions{}

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the pipeline for build triggers delivered over NATS JetStream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.start(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			if opts.natsURL == "" {
				opts.natsURL = a.cfg.NATSURL
			}
			if opts.natsURL == "" {
				opts.natsURL = nats.DefaultURL
			}
			return consume(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.natsURL, "nats-url", "", "NATS server URL (default from NATS_URL)")
	cmd.Flags().StringVar(&opts.durable, "durable", bus.DefaultDurable, "durable consumer name")
	cmd.Flags().DurationVar(&opts.ackWait, "ack-wait", 15*time.Minute, "time a trigger may run before it is redelivered")
	cmd.Flags().DurationVar(&opts.retained, "retention", 24*time.Hour, "max age of stream messages")
	return cmd
}

func consume(ctx context.Context, a *app, opts *consumeOptions) error {
	b, err := bus.New(opts.natsURL, nats.Name(a.cfg.Environment+"-incrementals-publisher"))
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.EnsureStream(opts.retained); err != nil {
		return err
	}
	consumer := bus.NewConsumer(a.pipeline, b, a.validator, a.logger)
	sub, err := b.Subscribe(ctx, bus.SubjectBuildCompleted, opts.durable, opts.ackWait, consumer.Handle)
	if err != nil {
		return err
	}
	defer sub.Close() //nolint:errcheck // unsubscribe on exit

	a.logger.Info("consuming build triggers",
		interfaces.F("subject", bus.SubjectBuildCompleted),
		interfaces.F("durable", opts.durable))
	<-ctx.Done()
	a.logger.Info("stopping consumer")
	return nil
}
