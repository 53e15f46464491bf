// Package cli implements the insureguard command line: the API server and
// the offline training, seeding and configuration tools.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"insureguard/risk-api/internal/config"
)

// Version is set at build time with
// -ldflags "-X insureguard/risk-api/internal/cli.Version=v1.2.3".
var Version = "dev"

type rootOptions struct {
	configFile string
}

// NewRootCommand builds the insureguard command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "insureguard",
		Short: "InsureGuard - insurance claim fraud risk scoring",
		Long: `InsureGuard scores insurance claims for fraud risk with a trained
classifier and surfaces fraud intelligence across the claim corpus:
repeated entities, linked claim networks and pattern alerts.

Scores are decision support for claim reviewers, not verdicts.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "insureguard.yaml",
		"config file (YAML); "+config.EnvPrefix+"* environment variables override it")

	cmd.AddCommand(
		newServeCmd(opts),
		newTrainCmd(opts),
		newSeedCmd(),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// load reads the configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "insureguard %s\n", Version)
		},
	}
}
