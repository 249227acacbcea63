package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jenkins-infra/incrementals-publisher/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "incrementals-publisher",
		Short:         "Publish incremental CI builds to the incrementals repository",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML file supplying configuration defaults")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded into the environment when present")

	cmd.AddCommand(
		newServeCommand(opts),
		newPublishCommand(opts),
		newConsumeCommand(opts),
	)
	return cmd
}

// load reads the dotenv file, then the configuration
func (o *rootOptions) load(ctx context.Context) (config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return config.Config{}, fmt.Errorf("failed to load %s: %w", o.envFile, err)
		}
	}
	return config.Load(ctx, o.configFile)
}

// start loads configuration and wires the publisher
func (o *rootOptions) start(ctx context.Context) (*app, error) {
	cfg, err := o.load(ctx)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
