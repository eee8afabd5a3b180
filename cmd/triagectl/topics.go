package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/drfirst/go-triage/internal/infrastructure/redpanda"
	"github.com/drfirst/go-triage/internal/intake"
)

const adminTimeout = 15 * time.Second

func submitCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Publish an intake message to the intake topic",
		Long: `Reads an intake message (JSON, vitals as strings) and publishes it to
	triage.intakes for the worker. submitted_at defaults to now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			var msg intake.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			if msg.SubmittedAt.IsZero() {
				msg.SubmittedAt = time.Now().UTC()
			}
			if msg.Source == "" {
				msg.Source = "triagectl"
			}
			if _, err := msg.Submission(); err != nil {
				return err
			}

			cfg := redpanda.DefaultProducerConfig()
			cfg.Brokers = brokers()
			producer, err := redpanda.NewProducer(cfg, nil)
			if err != nil {
				return err
			}
			defer producer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()

			key := msg.PatientCode
			if key == "" {
				key = msg.Name
			}
			if err := producer.PublishJSON(ctx, redpanda.TopicTriageIntakes, key, msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %s to %s\n", key, redpanda.TopicTriageIntakes)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", `intake message file, "-" for stdin`)
	return cmd
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Provision and inspect Redpanda topics",
	}
	cmd.AddCommand(topicsEnsureCmd(), topicsListCmd(), topicsDescribeCmd(), topicsLagCmd())
	return cmd
}

// withAdmin runs fn with an admin client bounded by adminTimeout
func withAdmin(cmd *cobra.Command, fn func(ctx context.Context, admin *redpanda.Admin) error) error {
	admin, err := redpanda.NewAdmin(brokers(), nil)
	if err != nil {
		return err
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	defer cancel()
	return fn(ctx, admin)
}

func topicsEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create every topic the services use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin) error {
				if err := admin.EnsureTopics(ctx); err != nil {
					return err
				}
				for _, t := range redpanda.DefaultTopicConfigs() {
					fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%d partitions)\n", t.Name, t.Partitions)
				}
				return nil
			})
		},
	}
}

func topicsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin) error {
				topics, err := admin.ListTopics(ctx)
				if err != nil {
					return err
				}
				for _, t := range topics {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}
}

func topicsDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [topic]",
		Short: "Show partition leaders and replicas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin) error {
				details, err := admin.DescribeTopic(ctx, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PARTITION\tLEADER\tREPLICAS\tISR")
				for _, p := range details.Partitions {
					fmt.Fprintf(w, "%d\t%d\t%v\t%v\n", p.ID, p.Leader, p.Replicas, p.ISR)
				}
				return w.Flush()
			})
		},
	}
}

func topicsLagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lag [group]",
		Short: "Show consumer group lag per partition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := redpanda.DefaultConsumerConfig().GroupID
			if len(args) == 1 {
				group = args[0]
			}
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin) error {
				lags, err := admin.GetConsumerGroupLag(ctx, group)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TOPIC\tPARTITION\tCOMMITTED\tEND\tLAG")
				var total int64
				for _, l := range lags {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", l.Topic, l.Partition, l.Committed, l.End, l.Lag)
					total += l.Lag
				}
				fmt.Fprintf(w, "total\t\t\t\t%d\n", total)
				return w.Flush()
			})
		},
	}
}
