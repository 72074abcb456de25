/*
Package factory provides JSON to Go requirement conversion.

PURPOSE:
  Converts JSON requirement definitions into engine.Requirement values with
  the correct due-date variant. This enables requirement configuration
  without code changes - officers define obligations in JSON, and the
  factory constructs validated Go structs.

JSON SCHEMA:
  {
    "id": "annual-training-hours",
    "name": "Annual Training Hours",
    "kind": "hours",
    "base_required": 24,
    "frequency": "annual",
    "due_date_type": "calendar_period",
    "period_start_month": 1,
    "period_start_day": 1,
    "categories": ["fire", "ems"],
    "active": true
  }

  Rolling requirements carry "rolling_period_months"; fixed-date
  requirements carry "fixed_due_date" (YYYY-MM-DD); certification-period
  requirements carry neither.

VALIDATION:
  Exactly one due-date-type-specific field set may be populated; the
  factory rejects configurations that mix variants or omit the payload
  their type demands. Violations surface as engine.ConfigurationError and
  are never silently defaulted.

SEE ALSO:
  - engine/requirement.go: Requirement and DueDate variant definitions
*/
package factory

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/stationops/compliance-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RequirementJSON is the JSON representation of a requirement.
type RequirementJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	BaseRequired float64  `json:"base_required,omitempty"`
	Frequency    string   `json:"frequency"`
	DueDateType  string   `json:"due_date_type"`
	Categories   []string `json:"categories,omitempty"`
	Active       *bool    `json:"active,omitempty"` // default true
	CreatedAt    string   `json:"created_at,omitempty"`

	// calendar_period payload
	PeriodStartMonth int `json:"period_start_month,omitempty"`
	PeriodStartDay   int `json:"period_start_day,omitempty"`

	// rolling payload
	RollingPeriodMonths int `json:"rolling_period_months,omitempty"`

	// fixed_date payload
	FixedDueDate string `json:"fixed_due_date,omitempty"`
}

// =============================================================================
// REQUIREMENT FACTORY
// =============================================================================

// RequirementFactory converts JSON requirement definitions to engine values.
type RequirementFactory struct{}

func NewRequirementFactory() *RequirementFactory {
	return &RequirementFactory{}
}

// Parse parses a JSON string into a validated Requirement.
func (f *RequirementFactory) Parse(jsonStr string) (*engine.Requirement, error) {
	var rj RequirementJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse requirement JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON builds and validates a Requirement from its JSON form.
func (f *RequirementFactory) FromJSON(rj RequirementJSON) (*engine.Requirement, error) {
	kind, err := parseKind(rj.Kind)
	if err != nil {
		return nil, err
	}
	freq, err := parseFrequency(rj.Frequency)
	if err != nil {
		return nil, err
	}

	dueDate, err := f.dueDateFromJSON(rj)
	if err != nil {
		return nil, err
	}

	active := true
	if rj.Active != nil {
		active = *rj.Active
	}

	createdAt := engine.Today()
	if rj.CreatedAt != "" {
		createdAt, err = engine.ParseDate(rj.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at: %w", err)
		}
	}

	req := engine.Requirement{
		ID:           engine.RequirementID(rj.ID),
		Name:         rj.Name,
		Kind:         kind,
		BaseRequired: decimal.NewFromFloat(rj.BaseRequired),
		Frequency:    freq,
		DueDate:      dueDate,
		Categories:   rj.Categories,
		Active:       active,
		CreatedAt:    createdAt,
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// dueDateFromJSON selects the variant and rejects mixed payloads: exactly
// one due-date-type-specific field set may be populated.
func (f *RequirementFactory) dueDateFromJSON(rj RequirementJSON) (engine.DueDate, error) {
	id := engine.RequirementID(rj.ID)

	hasCalendar := rj.PeriodStartMonth != 0 || rj.PeriodStartDay != 0
	hasRolling := rj.RollingPeriodMonths != 0
	hasFixed := rj.FixedDueDate != ""

	switch engine.DueDateType(rj.DueDateType) {
	case engine.DueCalendarPeriod:
		if hasRolling || hasFixed {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "due_date_type", Reason: "calendar_period requirement carries foreign variant fields"}
		}
		month := rj.PeriodStartMonth
		if month == 0 {
			month = 1
		}
		day := rj.PeriodStartDay
		if day == 0 {
			day = 1
		}
		return engine.CalendarPeriod{AnchorMonth: time.Month(month), AnchorDay: day}, nil

	case engine.DueRolling:
		if hasCalendar || hasFixed {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "due_date_type", Reason: "rolling requirement carries foreign variant fields"}
		}
		if rj.RollingPeriodMonths == 0 {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "rolling_period_months", Reason: "required for rolling requirements"}
		}
		return engine.Rolling{Months: rj.RollingPeriodMonths}, nil

	case engine.DueCertificationPeriod:
		if hasCalendar || hasRolling || hasFixed {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "due_date_type", Reason: "certification_period requirement carries foreign variant fields"}
		}
		return engine.CertPeriod{}, nil

	case engine.DueFixedDate:
		if hasCalendar || hasRolling {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "due_date_type", Reason: "fixed_date requirement carries foreign variant fields"}
		}
		if rj.FixedDueDate == "" {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "fixed_due_date", Reason: "required for fixed_date requirements"}
		}
		due, err := engine.ParseDate(rj.FixedDueDate)
		if err != nil {
			return nil, &engine.ConfigurationError{RequirementID: id, Field: "fixed_due_date", Reason: "not a YYYY-MM-DD date"}
		}
		return engine.FixedDate{Due: due}, nil

	default:
		return nil, &engine.ConfigurationError{RequirementID: id, Field: "due_date_type", Reason: fmt.Sprintf("unknown type %q", rj.DueDateType)}
	}
}

// ToJSON converts a Requirement back to its JSON form (for API responses
// and persistence of the configuration document).
func (f *RequirementFactory) ToJSON(req engine.Requirement) RequirementJSON {
	base, _ := req.BaseRequired.Float64()
	active := req.Active
	rj := RequirementJSON{
		ID:           string(req.ID),
		Name:         req.Name,
		Kind:         string(req.Kind),
		BaseRequired: base,
		Frequency:    string(req.Frequency),
		DueDateType:  string(req.DueDate.Type()),
		Categories:   req.Categories,
		Active:       &active,
		CreatedAt:    req.CreatedAt.String(),
	}

	switch dd := req.DueDate.(type) {
	case engine.CalendarPeriod:
		rj.PeriodStartMonth = int(dd.AnchorMonth)
		rj.PeriodStartDay = dd.AnchorDay
	case engine.Rolling:
		rj.RollingPeriodMonths = dd.Months
	case engine.FixedDate:
		rj.FixedDueDate = dd.Due.String()
	}
	return rj
}

// Marshal serializes the JSON form for storage.
func (f *RequirementFactory) Marshal(req engine.Requirement) (string, error) {
	b, err := json.Marshal(f.ToJSON(req))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseKind(s string) (engine.RequirementKind, error) {
	switch engine.RequirementKind(s) {
	case engine.KindHours, engine.KindShifts, engine.KindCalls,
		engine.KindCertification, engine.KindCourseCompletion:
		return engine.RequirementKind(s), nil
	default:
		return "", fmt.Errorf("unknown requirement kind %q", s)
	}
}

func parseFrequency(s string) (engine.Frequency, error) {
	switch engine.Frequency(s) {
	case engine.FreqAnnual, engine.FreqBiannual, engine.FreqQuarterly,
		engine.FreqMonthly, engine.FreqOneTime:
		return engine.Frequency(s), nil
	default:
		return "", fmt.Errorf("unknown frequency %q", s)
	}
}
