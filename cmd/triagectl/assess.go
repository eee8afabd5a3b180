package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/drfirst/go-triage/internal/classifier"
	fhir "github.com/drfirst/go-triage/internal/fhir/r5"
	"github.com/drfirst/go-triage/internal/fhir/mapper"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/triage"
)

func assessCmd() *cobra.Command {
	var (
		intakeFile string
		fhirOut    bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess an intake offline and print the result as JSON",
		Long: `Reads an intake record (JSON) or a FHIR Bundle from --intake, or stdin
	when the flag is "-", runs the engine over the configured classifier
	artifacts and prints the assessment. With --fhir the output is a FHIR
	RiskAssessment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), intakeFile)
			if err != nil {
				return err
			}

			in, subject, err := decodeIntake(data)
			if err != nil {
				return err
			}
			if err := intake.Validate(&in); err != nil {
				return err
			}

			set, err := classifier.LoadSet(modelDir, nil)
			if err != nil {
				return fmt.Errorf("failed to load classifiers: %w", err)
			}
			engine, err := set.Engine(nil)
			if err != nil {
				return err
			}

			a, err := engine.Assess(cmd.Context(), &in)
			if err != nil {
				return fmt.Errorf("assess: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if fhirOut {
				return enc.Encode(mapper.ToRiskAssessment(a, subject, "", time.Now()))
			}
			return enc.Encode(a)
		},
	}

	cmd.Flags().StringVar(&intakeFile, "intake", "-", `intake JSON or FHIR Bundle file, "-" for stdin`)
	cmd.Flags().BoolVar(&fhirOut, "fhir", false, "print a FHIR RiskAssessment")
	return cmd
}

// decodeIntake accepts either an intake record or a FHIR Bundle
func decodeIntake(data []byte) (triage.IntakeRecord, fhir.Reference, error) {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return triage.IntakeRecord{}, fhir.Reference{}, fmt.Errorf("decode intake: %w", err)
	}

	if head.ResourceType != "Bundle" {
		var in triage.IntakeRecord
		if err := json.Unmarshal(data, &in); err != nil {
			return triage.IntakeRecord{}, fhir.Reference{}, fmt.Errorf("decode intake: %w", err)
		}
		return in, fhir.Reference{}, nil
	}

	var bundle fhir.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return triage.IntakeRecord{}, fhir.Reference{}, fmt.Errorf("decode bundle: %w", err)
	}
	res, err := mapper.NewIntakeMapper().MapBundle(&bundle)
	if err != nil {
		return triage.IntakeRecord{}, fhir.Reference{}, err
	}
	return res.Intake, fhir.Reference{Reference: "Patient/" + res.PatientID, Display: res.PatientName}, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route [condition]",
		Short: "Print the department a condition routes to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), triage.RouteDepartment(strings.Join(args, " ")))
			return nil
		},
	}
}

func departmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List the routing table in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DEPARTMENT\tKEYWORDS")
			for _, rule := range triage.DepartmentRules {
				fmt.Fprintf(w, "%s\t%d\n", rule.Department, len(rule.Keywords))
			}
			fmt.Fprintf(w, "(fallback)\t%s\n", triage.FallbackDepartment)
			return w.Flush()
		},
	}
}
