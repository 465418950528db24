package store

import (
	"context"
	"fmt"

	"gatepass/model"
)

const findEventById = `SELECT id, organization_id, name, status, ticketed,
	allow_guests, allow_invitees,
	requires_payment, amount, currency,
	charge_members, charge_guests, charge_invitees,
	max_attendees, attendee_count,
	registration_opens_at, registration_closes_at,
	similarity_auto_approve, similarity_manual_review
FROM events WHERE id = $1`

func (q *Queries) FindEventById(ctx context.Context, id int64) (model.EventConfig, error) {
	row := q.db.QueryRow(ctx, findEventById, id)
	return scanEvent(row)
}

const findOpenEvents = `SELECT id, organization_id, name, status, ticketed,
	allow_guests, allow_invitees,
	requires_payment, amount, currency,
	charge_members, charge_guests, charge_invitees,
	max_attendees, attendee_count,
	registration_opens_at, registration_closes_at,
	similarity_auto_approve, similarity_manual_review
FROM events WHERE status IN ('upcoming', 'active') ORDER BY id`

func (q *Queries) FindOpenEvents(ctx context.Context) ([]model.EventConfig, error) {
	rows, err := q.db.Query(ctx, findOpenEvents)
	if err != nil {
		return nil, fmt.Errorf("find open events: %w", err)
	}
	defer rows.Close()

	var out []model.EventConfig
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}

	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvent(row scannable) (model.EventConfig, error) {
	var ev model.EventConfig
	err := row.Scan(
		&ev.ID, &ev.OrganizationID, &ev.Name, &ev.Status, &ev.Ticketed,
		&ev.AllowGuests, &ev.AllowInvitees,
		&ev.RequiresPayment, &ev.Amount, &ev.Currency,
		&ev.PaymentRules.Member, &ev.PaymentRules.Guest, &ev.PaymentRules.Invitee,
		&ev.MaxAttendees, &ev.AttendeeCount,
		&ev.RegistrationOpensAt, &ev.RegistrationClosesAt,
		&ev.Similarity.AutoApprove, &ev.Similarity.ManualReview,
	)
	if err != nil {
		return model.EventConfig{}, fmt.Errorf("scan event: %w", err)
	}
	return ev, nil
}
