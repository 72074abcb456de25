/*
scheduler.go - Certification alert sweep

PURPOSE:
  Walks active certifications, computes days-to-expiry, and emits at most
  one alert per tier per credential. The sweep is the idempotent batch
  entry point an external scheduler invokes nightly; re-running it on the
  same day, or on any day where no new threshold was crossed, sends
  nothing.

IDEMPOTENCY & CONCURRENCY:
  Tier state is keyed by (certification, expiry date) and advances through
  a conditional update: the store only moves the state forward if the
  stored tier is strictly earlier than the target. Two concurrent sweeps
  converge to the same final state and at most one of them wins the send.
  A failed dispatch never advances the tier, so the next sweep retries it.

RENEWAL:
  A renewed certification carries a later expiry date and therefore a
  fresh state row starting at none_sent. The old row remains as history
  and is never reset.

DELIVERY:
  The scheduler's responsibility ends at the state transition. Delivery,
  retries, and channel selection belong to the notification collaborator
  behind the Notifier interface.
*/
package alerts

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/stationops/compliance-engine/engine"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// CertificationLister reads every certification the sweep should examine.
type CertificationLister interface {
	ListCertifications(ctx context.Context) ([]engine.Certification, error)
}

// AlertState records which tier has already fired for one credential's
// expiry cycle.
type AlertState struct {
	MemberID        engine.MemberID
	CertificationID engine.CertificationID
	Expiry          engine.Date
	LastTier        Tier
	UpdatedAt       engine.Date
}

// StateStore persists tier states. AdvanceAlertTier is the conditional
// update underpinning the at-most-once guarantee.
type StateStore interface {
	GetAlertState(ctx context.Context, certID engine.CertificationID, expiry engine.Date) (*AlertState, error)

	// AdvanceAlertTier moves the state for (certID, expiry) forward to
	// state.LastTier only if the stored tier is strictly earlier (a missing
	// row counts as none_sent). Returns whether this caller won the advance.
	AdvanceAlertTier(ctx context.Context, state AlertState) (bool, error)

	ListAlertStates(ctx context.Context) ([]AlertState, error)
}

// Alert is the tuple handed to the notification collaborator.
type Alert struct {
	MemberID          engine.MemberID
	CertificationID   engine.CertificationID
	CertificationName string
	Tier              Tier
	DaysUntilExpiry   int
	Recipients        []Recipient
}

// Notifier hands alerts to the delivery collaborator. An error means the
// dispatch was not confirmed and the tier must not advance.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier is the default stand-in delivery collaborator: it logs the
// alert and reports success.
type LogNotifier struct {
	Log *logrus.Entry
}

func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.Log.WithFields(logrus.Fields{
		"member":        alert.MemberID,
		"certification": alert.CertificationID,
		"tier":          alert.Tier.String(),
		"days_left":     alert.DaysUntilExpiry,
		"recipients":    alert.Recipients,
	}).Info("certification alert dispatched")
	return nil
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler runs the certification alert sweep.
type Scheduler struct {
	Certs    CertificationLister
	States   StateStore
	Notifier Notifier

	log *logrus.Entry
}

func NewScheduler(certs CertificationLister, states StateStore, notifier Notifier) *Scheduler {
	return &Scheduler{
		Certs:    certs,
		States:   states,
		Notifier: notifier,
		log:      logrus.WithField("package", "alerts"),
	}
}

// SweepSummary reports what one sweep did.
type SweepSummary struct {
	Examined int `json:"examined"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RunSweep examines every certification once. Safe to re-run and to run
// concurrently: tier advancement is conditional.
func (s *Scheduler) RunSweep(ctx context.Context, asOf engine.Date) (SweepSummary, error) {
	certs, err := s.Certs.ListCertifications(ctx)
	if err != nil {
		return SweepSummary{}, err
	}

	var summary SweepSummary
	for _, cert := range certs {
		summary.Examined++

		days := cert.DaysUntilExpiry(asOf)
		target := TierFor(days)
		if target == TierNone {
			continue
		}

		current := TierNone
		state, err := s.States.GetAlertState(ctx, cert.ID, cert.ExpiresAt)
		if err != nil {
			return summary, err
		}
		if state != nil {
			current = state.LastTier
		}
		if target <= current {
			// Already at or past this tier for this expiry cycle: no-op.
			summary.Skipped++
			continue
		}

		alert := Alert{
			MemberID:          cert.MemberID,
			CertificationID:   cert.ID,
			CertificationName: cert.Name,
			Tier:              target,
			DaysUntilExpiry:   days,
			Recipients:        target.Recipients(),
		}
		if err := s.Notifier.Notify(ctx, alert); err != nil {
			// Dispatch unconfirmed: leave the tier where it was so the next
			// sweep retries.
			s.log.WithError(err).WithField("certification", cert.ID).Warn("alert dispatch failed")
			summary.Failed++
			continue
		}

		won, err := s.States.AdvanceAlertTier(ctx, AlertState{
			MemberID:        cert.MemberID,
			CertificationID: cert.ID,
			Expiry:          cert.ExpiresAt,
			LastTier:        target,
			UpdatedAt:       asOf,
		})
		if err != nil {
			return summary, err
		}
		if !won {
			// A concurrent sweep recorded this tier first.
			summary.Skipped++
			continue
		}
		summary.Sent++
	}

	s.log.WithFields(logrus.Fields{
		"as_of":    asOf.String(),
		"examined": summary.Examined,
		"sent":     summary.Sent,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("certification alert sweep completed")
	return summary, nil
}
