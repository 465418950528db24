package model

import "time"

// Category is the closed set of participant categories. Per-category
// behavior (pricing, required fields) is data looked up by category,
// never a separate code path.
type Category string

const (
	CategoryMember  Category = "member"
	CategoryGuest   Category = "guest"
	CategoryInvitee Category = "invitee"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMember, CategoryGuest, CategoryInvitee:
		return true
	}
	return false
}

const (
	EventStatusUpcoming  = "upcoming"
	EventStatusActive    = "active"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// PaymentRules marks which categories are charged when the event itself
// requires payment.
type PaymentRules struct {
	Member  bool `json:"member"`
	Guest   bool `json:"guest"`
	Invitee bool `json:"invitee"`
}

func (r PaymentRules) ForCategory(c Category) bool {
	switch c {
	case CategoryMember:
		return r.Member
	case CategoryGuest:
		return r.Guest
	case CategoryInvitee:
		return r.Invitee
	}
	return false
}

// SimilarityThresholds is the per-event photo score configuration. Zero
// values mean "use the instance defaults".
type SimilarityThresholds struct {
	AutoApprove  float64 `json:"auto_approve"`
	ManualReview float64 `json:"manual_review"`
}

// EventConfig is the slice of an event the engine cares about: category
// gates, payment configuration, capacity and the registration window.
type EventConfig struct {
	ID                   int64                `json:"id"`
	OrganizationID       int64                `json:"organization_id"`
	Name                 string               `json:"name"`
	Status               string               `json:"status"`
	Ticketed             bool                 `json:"ticketed"`
	AllowGuests          bool                 `json:"allow_guests"`
	AllowInvitees        bool                 `json:"allow_invitees"`
	RequiresPayment      bool                 `json:"requires_payment"`
	Amount               int64                `json:"amount"`
	Currency             string               `json:"currency"`
	PaymentRules         PaymentRules         `json:"payment_rules"`
	MaxAttendees         int32                `json:"max_attendees"`
	AttendeeCount        int32                `json:"attendee_count"`
	RegistrationOpensAt  time.Time            `json:"registration_opens_at"`
	RegistrationClosesAt time.Time            `json:"registration_closes_at"`
	Similarity           SimilarityThresholds `json:"similarity"`
}

// CategoryAllowed applies the event's allow flags. Members are always
// eligible for their own organization's events.
func (e EventConfig) CategoryAllowed(c Category) bool {
	switch c {
	case CategoryMember:
		return true
	case CategoryGuest:
		return e.AllowGuests
	case CategoryInvitee:
		return e.AllowInvitees
	}
	return false
}

// RegistrationOpen reports whether the event accepts submissions at t.
func (e EventConfig) RegistrationOpen(t time.Time) bool {
	if e.Status != EventStatusUpcoming && e.Status != EventStatusActive {
		return false
	}
	if t.Before(e.RegistrationOpensAt) {
		return false
	}
	return !t.After(e.RegistrationClosesAt)
}

type EventResponse struct {
	Event   EventConfig     `json:"event"`
	Pricing []CategoryQuote `json:"pricing"`
}

// CategoryQuote is the render-time pricing line for one category; the
// submission-time resolver must agree with it.
type CategoryQuote struct {
	Category        Category `json:"category"`
	Allowed         bool     `json:"allowed"`
	PaymentRequired bool     `json:"payment_required"`
	Amount          int64    `json:"amount,omitempty"`
	Currency        string   `json:"currency,omitempty"`
}
