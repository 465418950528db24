package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrCapacityExceeded is returned when the event's running counter is
// already at max_attendees.
var ErrCapacityExceeded = errors.New("event capacity exceeded")

// reserveEventSlot is the durable capacity check: the increment only lands
// while the running counter is below the limit, so concurrent issuance near
// the cap cannot oversell.
const reserveEventSlot = `UPDATE events SET attendee_count = attendee_count + 1, updated_at = now()
WHERE id = $1 AND attendee_count < max_attendees`

// IssueRegistration reserves a capacity slot and persists the credentialed
// registration in one transaction. Either both land or neither does; there
// is no reserved-but-uncredentialed state for a retry to trip over.
func (q *Queries) IssueRegistration(ctx context.Context, arg InsertRegistrationParams) (int64, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin issue registration: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, reserveEventSlot, arg.EventID)
	if err != nil {
		return 0, fmt.Errorf("reserve event slot: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, ErrCapacityExceeded
	}

	id, err := q.WithTx(tx).InsertRegistration(ctx, arg)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit issue registration: %w", err)
	}

	return id, nil
}

// IssueTicket is the ticketed twin of IssueRegistration.
func (q *Queries) IssueTicket(ctx context.Context, arg InsertTicketParams) (int64, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin issue ticket: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, reserveEventSlot, arg.EventID)
	if err != nil {
		return 0, fmt.Errorf("reserve event slot: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, ErrCapacityExceeded
	}

	id, err := q.WithTx(tx).InsertTicket(ctx, arg)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit issue ticket: %w", err)
	}

	return id, nil
}

type TransferTicketParams struct {
	TicketNumber string
	ToName       string
	ToEmail      string
	ToPhone      string
}

// TransferTicket rebinds ownership and appends the immutable transfer log
// entry in one transaction. Returns pgx.ErrNoRows when the ticket cannot
// move (unknown, used or cancelled).
func (q *Queries) TransferTicket(ctx context.Context, arg TransferTicketParams) (int32, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transfer ticket: %w", err)
	}
	defer tx.Rollback(ctx)

	withTx := q.WithTx(tx)

	ticket, err := withTx.FindTicketByNumber(ctx, arg.TicketNumber)
	if err != nil {
		return 0, err
	}

	cmd, err := withTx.UpdateTicketOwner(ctx, UpdateTicketOwnerParams{
		TicketNumber: arg.TicketNumber,
		Name:         arg.ToName,
		Email:        arg.ToEmail,
		Phone:        arg.ToPhone,
	})
	if err != nil {
		return 0, fmt.Errorf("update ticket owner: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, pgx.ErrNoRows
	}

	seq, err := withTx.InsertTicketTransfer(ctx, InsertTicketTransferParams{
		TicketNumber: arg.TicketNumber,
		FromName:     ticket.Name,
		FromEmail:    ticket.Email,
		ToName:       arg.ToName,
		ToEmail:      arg.ToEmail,
	})
	if err != nil {
		return 0, fmt.Errorf("insert ticket transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transfer ticket: %w", err)
	}

	return seq, nil
}
