// Command insureguard runs the InsureGuard risk API and its offline tools.
//
// Usage:
//
//	insureguard serve [--config insureguard.yaml] [--addr :8080] [--claims data/seed.json]
//	insureguard train [--claims data/seed.json] [--metric roc_auc]
//	insureguard seed  [--out data/seed.json] [--claims 300] [--fraud-rate 0.15] [--seed 42]
//	insureguard config show
//	insureguard version
package main

import (
	"fmt"
	"os"

	"insureguard/risk-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
