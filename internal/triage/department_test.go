package triage

import "testing"

func TestRouteDepartment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		condition string
		want      string
	}{
		{"Pneumonia", "Pulmonology"},
		{"Heart attack", "Cardiology"},
		{"Ear infection", "ENT"},
		{"Urinary tract infection", "Nephrology"},
		{"Sepsis", "Infectious Disease"},
		{"Common cold", "General Medicine"},
		{"Qqq", FallbackDepartment},
		{"", FallbackDepartment},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			t.Parallel()
			if got := RouteDepartment(tt.condition); got != tt.want {
				t.Errorf("RouteDepartment(%q) = %q, want %q", tt.condition, got, tt.want)
			}
		})
	}
}

func TestRouteDepartmentDeclarationOrderWins(t *testing.T) {
	t.Parallel()

	// "heart" and "ear" both match; cardiology is declared first
	if got := RouteDepartment("HEART FAILURE"); got != "Cardiology" {
		t.Errorf("got %q, want Cardiology", got)
	}
}

func TestDepartments(t *testing.T) {
	t.Parallel()

	got := Departments()
	if len(got) != len(DepartmentRules) {
		t.Fatalf("len = %d, want %d", len(got), len(DepartmentRules))
	}
	if got[0] != "Cardiology" || got[len(got)-1] != "General Medicine" {
		t.Errorf("unexpected order: first %q last %q", got[0], got[len(got)-1])
	}
}
