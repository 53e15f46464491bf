package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/seed"
)

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()
	var out string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a synthetic labelled claim corpus",
		Long: `Generate a deterministic synthetic claim corpus and write it as JSON.

The corpus mixes genuine claims, opportunistic fraud and an organised ring
sharing a repair shop and phone number. Every claim carries a reviewer label,
so the file can be passed to "train --claims" or "serve --claims".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims := seed.Generate(opts)

			if dir := filepath.Dir(out); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("mkdir %s: %w", dir, err)
				}
			}
			if err := writeClaims(out, claims); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			var fraud int
			for _, c := range claims {
				if c.Label == domain.LabelFraud {
					fraud++
				}
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %d claims (%d fraud) to %s\n", len(claims), fraud, out)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data/seed.json", "output file")
	cmd.Flags().IntVar(&opts.Claims, "claims", opts.Claims, "number of claims")
	cmd.Flags().Float64Var(&opts.FraudRate, "fraud-rate", opts.FraudRate, "share of fraudulent claims")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	return cmd
}
