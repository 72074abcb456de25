/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes crossing the API boundary. Internal types use
  decimal.Decimal and the day-granular Date; DTOs flatten those to strings
  and floats so clients never see implementation types.

CONVENTIONS:
  - Dates are YYYY-MM-DD strings; nullable dates are omitted when unset
  - Quantities are float64 on the wire, decimal internally
  - Enums are their lowercase string forms
*/
package api

import (
	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/leave"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

type CreateMemberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HireDate string `json:"hire_date"`
	Tier     string `json:"tier,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

type CreateProgressRequest struct {
	ID         string   `json:"id"`
	MemberID   string   `json:"member_id"`
	Activity   string   `json:"activity"`
	Kind       string   `json:"kind"`
	Date       string   `json:"date"`
	Hours      float64  `json:"hours,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

type CreateCertificationRequest struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}

type CreateLeaveRequest struct {
	MemberID                 string `json:"member_id"`
	Type                     string `json:"type"`
	Start                    string `json:"start"`
	End                      string `json:"end,omitempty"`
	ExemptFromTrainingWaiver bool   `json:"exempt_from_training_waiver,omitempty"`
}

type UpdateLeaveDatesRequest struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

type CreateWaiverRequest struct {
	MemberID string   `json:"member_id"`
	Scopes   []string `json:"scopes"`
	Start    string   `json:"start"`
	End      string   `json:"end,omitempty"`
}

type SweepRequest struct {
	AsOf string `json:"as_of,omitempty"` // defaults to today
}

// =============================================================================
// RESPONSE BODIES
// =============================================================================

type MemberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	HireDate string `json:"hire_date"`
	Tier     string `json:"tier,omitempty"`
}

func toMemberResponse(m engine.Member) MemberResponse {
	return MemberResponse{
		ID:       string(m.ID),
		Name:     m.Name,
		Active:   m.Active,
		HireDate: m.HireDate.String(),
		Tier:     m.Tier,
	}
}

type WindowResponse struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Open        bool   `json:"open"`
	TotalMonths int    `json:"total_months"`
}

type DuplicateResponse struct {
	Activity string `json:"activity"`
	First    string `json:"first_record_id"`
	Second   string `json:"second_record_id"`
	FirstAt  string `json:"first_at"`
	SecondAt string `json:"second_at"`
}

type ComplianceResponse struct {
	MemberID         string              `json:"member_id"`
	RequirementID    string              `json:"requirement_id"`
	Window           WindowResponse      `json:"window"`
	BaseRequired     float64             `json:"base_required"`
	AdjustedRequired float64             `json:"adjusted_required"`
	Progress         float64             `json:"progress"`
	Percentage       float64             `json:"percentage"`
	Status           string              `json:"status"`
	ExcludedMonths   int                 `json:"excluded_months"`
	UnitWaivers      int                 `json:"unit_waivers"`
	Duplicates       []DuplicateResponse `json:"duplicates,omitempty"`
	EvaluatedAt      string              `json:"evaluated_at"`
}

func toComplianceResponse(r *engine.ComplianceResult) ComplianceResponse {
	base, _ := r.BaseRequired.Float64()
	adjusted, _ := r.AdjustedRequired.Float64()
	progress, _ := r.Progress.Float64()
	pct, _ := r.Percentage.Round(2).Float64()

	resp := ComplianceResponse{
		MemberID:         string(r.MemberID),
		RequirementID:    string(r.RequirementID),
		Window:           toWindowResponse(r.Window),
		BaseRequired:     base,
		AdjustedRequired: adjusted,
		Progress:         progress,
		Percentage:       pct,
		Status:           string(r.Status),
		ExcludedMonths:   r.ExcludedMonths,
		UnitWaivers:      r.UnitWaivers,
		EvaluatedAt:      r.EvaluatedAt.String(),
	}
	for _, d := range r.Duplicates {
		resp.Duplicates = append(resp.Duplicates, DuplicateResponse{
			Activity: d.Activity,
			First:    string(d.First),
			Second:   string(d.Second),
			FirstAt:  d.FirstAt.String(),
			SecondAt: d.SecondAt.String(),
		})
	}
	return resp
}

func toWindowResponse(w engine.Window) WindowResponse {
	return WindowResponse{
		Start:       w.Start.String(),
		End:         w.End.String(),
		Open:        w.Open,
		TotalMonths: w.TotalMonths,
	}
}

type CertificationResponse struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}

func toCertificationResponse(c engine.Certification) CertificationResponse {
	return CertificationResponse{
		ID:        string(c.ID),
		MemberID:  string(c.MemberID),
		Name:      c.Name,
		Category:  c.Category,
		IssuedAt:  c.IssuedAt.String(),
		ExpiresAt: c.ExpiresAt.String(),
	}
}

type LeaveResponse struct {
	ID                       string  `json:"id"`
	MemberID                 string  `json:"member_id"`
	Type                     string  `json:"type"`
	Start                    string  `json:"start"`
	End                      *string `json:"end,omitempty"`
	Active                   bool    `json:"active"`
	ExemptFromTrainingWaiver bool    `json:"exempt_from_training_waiver"`
	LinkedWaiverID           *string `json:"linked_waiver_id,omitempty"`
}

func toLeaveResponse(l leave.LeaveOfAbsence) LeaveResponse {
	resp := LeaveResponse{
		ID:                       string(l.ID),
		MemberID:                 string(l.MemberID),
		Type:                     string(l.Type),
		Start:                    l.Start.String(),
		Active:                   l.Active,
		ExemptFromTrainingWaiver: l.ExemptFromTrainingWaiver,
	}
	if l.End != nil {
		s := l.End.String()
		resp.End = &s
	}
	if l.LinkedWaiverID != nil {
		s := string(*l.LinkedWaiverID)
		resp.LinkedWaiverID = &s
	}
	return resp
}

type WaiverResponse struct {
	ID       string   `json:"id"`
	MemberID string   `json:"member_id"`
	Scopes   []string `json:"scopes"`
	Start    string   `json:"start"`
	End      *string  `json:"end,omitempty"`
	Active   bool     `json:"active"`
	Source   string   `json:"source"`
	LeaveID  *string  `json:"leave_id,omitempty"`
}

func toWaiverResponse(w leave.Waiver) WaiverResponse {
	resp := WaiverResponse{
		ID:       string(w.ID),
		MemberID: string(w.MemberID),
		Start:    w.Start.String(),
		Active:   w.Active,
		Source:   string(w.Source),
	}
	for _, s := range w.Scopes {
		resp.Scopes = append(resp.Scopes, string(s))
	}
	if w.End != nil {
		s := w.End.String()
		resp.End = &s
	}
	if w.LeaveID != nil {
		s := string(*w.LeaveID)
		resp.LeaveID = &s
	}
	return resp
}

type AlertStateResponse struct {
	MemberID        string `json:"member_id"`
	CertificationID string `json:"certification_id"`
	Expiry          string `json:"expiry"`
	LastTier        string `json:"last_tier"`
	UpdatedAt       string `json:"updated_at"`
}

func toAlertStateResponse(s alerts.AlertState) AlertStateResponse {
	return AlertStateResponse{
		MemberID:        string(s.MemberID),
		CertificationID: string(s.CertificationID),
		Expiry:          s.Expiry.String(),
		LastTier:        s.LastTier.String(),
		UpdatedAt:       s.UpdatedAt.String(),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}
