// Package alerts implements the certification expiry alert scheduler: a
// monotonic per-credential tier state machine (90/60/30/7/expired days)
// guaranteeing at-most-once delivery per tier, driven by a recurring sweep
// that tolerates retries and concurrent runs.
package alerts

// =============================================================================
// ALERT TIERS - Monotonic forward-only state machine
// =============================================================================

// Tier is one step of the expiry alert ladder. Ordering matters: a state
// only ever advances to a strictly later tier.
type Tier int

const (
	TierNone Tier = iota
	Tier90
	Tier60
	Tier30
	Tier7
	TierExpired
)

func (t Tier) String() string {
	switch t {
	case Tier90:
		return "sent_90"
	case Tier60:
		return "sent_60"
	case Tier30:
		return "sent_30"
	case Tier7:
		return "sent_7"
	case TierExpired:
		return "sent_expired"
	default:
		return "none_sent"
	}
}

// TierFor maps days-until-expiry to the alert tier that should have fired
// by now. More than 90 days out, no alert is due.
func TierFor(daysUntilExpiry int) Tier {
	switch {
	case daysUntilExpiry <= 0:
		return TierExpired
	case daysUntilExpiry <= 7:
		return Tier7
	case daysUntilExpiry <= 30:
		return Tier30
	case daysUntilExpiry <= 60:
		return Tier60
	case daysUntilExpiry <= 90:
		return Tier90
	default:
		return TierNone
	}
}

// =============================================================================
// RECIPIENTS - Widen as expiry approaches
// =============================================================================

type Recipient string

const (
	RecipientMember            Recipient = "member"
	RecipientTrainingOfficer   Recipient = "training_officer"
	RecipientComplianceOfficer Recipient = "compliance_officer"
)

// Recipients returns who is notified at this tier: member only at 90/60,
// plus the training officer at 30, plus the compliance officer at 7 and
// expiry.
func (t Tier) Recipients() []Recipient {
	switch t {
	case Tier90, Tier60:
		return []Recipient{RecipientMember}
	case Tier30:
		return []Recipient{RecipientMember, RecipientTrainingOfficer}
	case Tier7, TierExpired:
		return []Recipient{RecipientMember, RecipientTrainingOfficer, RecipientComplianceOfficer}
	default:
		return nil
	}
}
