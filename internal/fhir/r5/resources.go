package r5

import (
	"encoding/json"
	"strings"
	"time"
)

// Patient represents a FHIR R5 Patient resource.
type Patient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Meta         *Meta          `json:"meta,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Active       bool           `json:"active,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Gender       string         `json:"gender,omitempty"` // male | female | other | unknown
	BirthDate    string         `json:"birthDate,omitempty"`
}

// GetOfficialName returns the patient's official name, or first available.
func (p *Patient) GetOfficialName() *HumanName {
	for i := range p.Name {
		if p.Name[i].Use == "official" {
			return &p.Name[i]
		}
	}
	if len(p.Name) > 0 {
		return &p.Name[0]
	}
	return nil
}

// GetFullName returns the patient's full name as a string.
func (p *Patient) GetFullName() string {
	name := p.GetOfficialName()
	if name == nil {
		return ""
	}
	if name.Text != "" {
		return name.Text
	}
	parts := append([]string(nil), name.Given...)
	if name.Family != "" {
		parts = append(parts, name.Family)
	}
	return strings.Join(parts, " ")
}

// GetMRN returns the patient's medical record number.
func (p *Patient) GetMRN() string {
	for _, id := range p.Identifier {
		if id.System == SystemMRN {
			return id.Value
		}
		if id.Type.HasCode("", "MR") {
			return id.Value
		}
	}
	return ""
}

// AgeAt returns completed years between BirthDate and at. Partial dates
// (YYYY or YYYY-MM) are accepted and anchored to the first day.
func (p *Patient) AgeAt(at time.Time) (int, bool) {
	var birth time.Time
	var err error
	switch len(p.BirthDate) {
	case 4:
		birth, err = time.Parse("2006", p.BirthDate)
	case 7:
		birth, err = time.Parse("2006-01", p.BirthDate)
	default:
		birth, err = time.Parse("2006-01-02", p.BirthDate)
	}
	if err != nil || birth.After(at) {
		return 0, false
	}

	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// Condition represents a FHIR R5 Condition resource.
type Condition struct {
	ResourceType   string            `json:"resourceType"`
	ID             string            `json:"id,omitempty"`
	ClinicalStatus *CodeableConcept  `json:"clinicalStatus,omitempty"`
	Category       []CodeableConcept `json:"category,omitempty"`
	Code           *CodeableConcept  `json:"code,omitempty"`
	Subject        Reference         `json:"subject"`
	RecordedDate   string            `json:"recordedDate,omitempty"`
}

// IsActive reports whether the condition is clinically active. Conditions
// without a clinical status are treated as active.
func (c *Condition) IsActive() bool {
	if c.ClinicalStatus == nil {
		return true
	}
	for _, coding := range c.ClinicalStatus.Coding {
		switch coding.Code {
		case "inactive", "resolved", "remission":
			return false
		}
	}
	return true
}

// Bundle represents a FHIR R5 Bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"` // collection | transaction | ...
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry holds a single resource in raw form. The resource type is
// resolved lazily by the mapper.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource"`
}

// ResourceType peeks at the resourceType of a raw resource.
func (e BundleEntry) ResourceType() string {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(e.Resource, &head); err != nil {
		return ""
	}
	return head.ResourceType
}

// NewEntry wraps a resource into a bundle entry.
func NewEntry(fullURL string, resource any) (BundleEntry, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return BundleEntry{}, err
	}
	return BundleEntry{FullURL: fullURL, Resource: raw}, nil
}
