package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// run executes the CLI with args and stdin, returning stdout
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRouteCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"route", "Heart", "attack"}, "Cardiology"},
		{[]string{"route", "pneumonia"}, "Pulmonology"},
		{[]string{"route", "xyz"}, "General Medicine"},
	}
	for _, tt := range tests {
		out, err := run(t, "", tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if got := strings.TrimSpace(out); got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}

	if _, err := run(t, "", "route"); err == nil {
		t.Error("route without a condition should fail")
	}
}

func TestDepartmentsCommand(t *testing.T) {
	out, err := run(t, "", "departments")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.HasPrefix(lines[0], "DEPARTMENT") || !strings.HasPrefix(lines[1], "Cardiology") {
		t.Errorf("unexpected header or first rule:\n%s", out)
	}
	if !strings.Contains(lines[len(lines)-1], "General Medicine") {
		t.Errorf("last line should name the fallback: %q", lines[len(lines)-1])
	}
}

func TestAssessCommand(t *testing.T) {
	intake := `{"age":67,"gender":"male","vitals":{"heart_rate":128,"systolic_bp":86,"diastolic_bp":52,"temperature":102.4,"oxygen_saturation":88,"respiratory_rate":30},"symptoms":["chest pain","shortness of breath"],"conditions":["heart disease"]}`

	out, err := run(t, intake, "--models", "../../models", "assess")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	var a struct {
		RiskLevel     string `json:"risk_level"`
		PriorityScore int    `json:"priority_score"`
		Department    string `json:"department"`
	}
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if a.RiskLevel == "" || a.Department == "" {
		t.Errorf("incomplete assessment: %+v", a)
	}
	if a.PriorityScore < 0 || a.PriorityScore > 100 {
		t.Errorf("priority score %d out of range", a.PriorityScore)
	}
}

func TestAssessCommandFHIR(t *testing.T) {
	out, err := run(t, "", "--models", "../../models", "assess", "--fhir", "--intake", "../../test/fixtures/triage_bundle_pneumonia.json")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	var ra struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal([]byte(out), &ra); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if ra.ResourceType != "RiskAssessment" {
		t.Errorf("resourceType = %q", ra.ResourceType)
	}
}

func TestAssessCommandRejectsInvalidIntake(t *testing.T) {
	if _, err := run(t, `{"age":400}`, "--models", "../../models", "assess"); err == nil {
		t.Error("age 400 should be rejected")
	}
	if _, err := run(t, `not json`, "--models", "../../models", "assess"); err == nil {
		t.Error("malformed input should be rejected")
	}
}
