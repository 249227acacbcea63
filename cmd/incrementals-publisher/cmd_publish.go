package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
)

// errNotPublished marks a run whose result was not a 2xx
var errNotPublished = errors.New("build was not published")

func newPublishCommand(root *rootOptions) *cobra.Command {
	var buildURL string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run the pipeline once for a build URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.start(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			result := a.pipeline.Publish(cmd.Context(), entities.Trigger{BuildURL: buildURL})
			return report(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&buildURL, "build-url", "", "URL of the CI build to publish")
	_ = cmd.MarkFlagRequired("build-url")
	return cmd
}

// report prints the result body and fails for anything but success
func report(w io.Writer, result entities.PipelineResult) error {
	fmt.Fprint(w, result.Body) //nolint:errcheck // best effort output
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", errNotPublished, result.StatusCode)
	}
	return nil
}
