// Package main provides triagectl, the operator CLI for the triage engine.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	modelDir   string
	brokerList string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "triagectl",
		Short: "Operate the triage decision engine",
		Long: `triagectl runs offline assessments against the classifier artifacts,
	inspects the department routing table, submits intakes to the broker and
	provisions the Redpanda topics the services use.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&modelDir, "models", envOr("MODEL_DIR", "models"), "classifier artifact directory")
	root.PersistentFlags().StringVar(&brokerList, "brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "comma separated broker addresses")

	root.AddCommand(assessCmd())
	root.AddCommand(routeCmd())
	root.AddCommand(departmentsCmd())
	root.AddCommand(submitCmd())
	root.AddCommand(topicsCmd())
	return root
}

func brokers() []string {
	var out []string
	for _, b := range strings.Split(brokerList, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
