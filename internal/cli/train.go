package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"insureguard/risk-api/internal/seed"
)

func newTrainCmd(root *rootOptions) *cobra.Command {
	var (
		claimsFile string
		metric     string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model offline and persist the artifact",
		Long: `Train the fraud classifier from labelled claims and save the artifact to
the configured artifact store, where a running or restarted server picks it up.

Claims come from --claims (a JSON array with reviewer labels) or, without it,
from the synthetic generator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			claims := seed.Generate(cfg.Seed.Options)
			if claimsFile != "" {
				if claims, err = readClaims(claimsFile); err != nil {
					return err
				}
			}
			a.load(claims)

			tc := cfg.Training.Classifier()
			if metric != "" {
				tc.Metric = metric
			}
			md, err := a.service.TrainModel(ctx, tc)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(md, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&claimsFile, "claims", "", "JSON file of labelled claims")
	cmd.Flags().StringVar(&metric, "metric", "", "ranking metric: roc_auc, f1, recall or precision")
	return cmd
}
