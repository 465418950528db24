// Package pricing decides whether a participant owes payment for an event
// and how much. It is pure: the same event configuration and category always
// produce the same quote, so the form-render evaluation and the submission
// evaluation cannot disagree.
package pricing

import "gatepass/model"

type Quote struct {
	PaymentRequired bool
	Amount          int64
	Currency        string
}

// Resolve applies the event's payment configuration to one category.
// When the event does not require payment, or the category is exempt by the
// payment rules, the quote carries no amount at all: stale amount fields on
// the event record must never leak into a non-payment flow.
func Resolve(ev model.EventConfig, category model.Category) Quote {
	if !ev.RequiresPayment {
		return Quote{}
	}

	if !ev.PaymentRules.ForCategory(category) {
		return Quote{}
	}

	return Quote{
		PaymentRequired: true,
		Amount:          ev.Amount,
		Currency:        ev.Currency,
	}
}

// Quotes returns the render-time pricing table for every category.
func Quotes(ev model.EventConfig) []model.CategoryQuote {
	categories := []model.Category{model.CategoryMember, model.CategoryGuest, model.CategoryInvitee}

	out := make([]model.CategoryQuote, 0, len(categories))
	for _, c := range categories {
		q := Resolve(ev, c)
		out = append(out, model.CategoryQuote{
			Category:        c,
			Allowed:         ev.CategoryAllowed(c),
			PaymentRequired: q.PaymentRequired,
			Amount:          q.Amount,
			Currency:        q.Currency,
		})
	}

	return out
}
