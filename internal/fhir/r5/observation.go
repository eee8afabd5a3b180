package r5

import "time"

// Observation represents a FHIR R5 Observation resource.
type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Status            string                 `json:"status"`
	Category          []CodeableConcept      `json:"category,omitempty"`
	Code              CodeableConcept        `json:"code"`
	Subject           *Reference             `json:"subject,omitempty"`
	EffectiveDateTime *time.Time             `json:"effectiveDateTime,omitempty"`
	ValueQuantity     *Quantity              `json:"valueQuantity,omitempty"`
	ValueString       string                 `json:"valueString,omitempty"`
	ValueBoolean      *bool                  `json:"valueBoolean,omitempty"`
	Component         []ObservationComponent `json:"component,omitempty"`
	Note              []Annotation           `json:"note,omitempty"`
}

// ObservationComponent is a sub-measurement such as systolic pressure.
type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
}

// HasCategory reports whether the observation carries the given category code.
func (o *Observation) HasCategory(code string) bool {
	for i := range o.Category {
		if o.Category[i].HasCode("", code) {
			return true
		}
	}
	return false
}

// IsLOINC reports whether the observation code is any of the LOINC codes.
func (o *Observation) IsLOINC(codes ...string) bool {
	for _, code := range codes {
		if o.Code.HasCode(SystemLOINC, code) {
			return true
		}
	}
	return false
}

// Value returns the numeric value and its UCUM unit, if any.
func (o *Observation) Value() (float64, string, bool) {
	if o.ValueQuantity == nil || o.ValueQuantity.Value == nil {
		return 0, "", false
	}
	unit := o.ValueQuantity.Code
	if unit == "" {
		unit = o.ValueQuantity.Unit
	}
	return *o.ValueQuantity.Value, unit, true
}

// ComponentValue returns the numeric value of the component with the given
// LOINC code.
func (o *Observation) ComponentValue(code string) (float64, bool) {
	for _, c := range o.Component {
		if c.Code.HasCode(SystemLOINC, code) && c.ValueQuantity != nil && c.ValueQuantity.Value != nil {
			return *c.ValueQuantity.Value, true
		}
	}
	return 0, false
}

// IsUsable reports whether the observation status allows clinical use.
func (o *Observation) IsUsable() bool {
	switch o.Status {
	case StatusCancelled, "entered-in-error":
		return false
	}
	if o.ValueBoolean != nil && !*o.ValueBoolean {
		return false
	}
	return true
}
