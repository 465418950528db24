package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"gatepass/model"
)

type TicketRow struct {
	ID               int64
	EventID          int64
	Category         model.Category
	Name             string
	Email            string
	Phone            string
	TicketNumber     string
	QrSecretHash     string
	ManualCode       string
	Status           string
	PaymentStatus    string
	Price            int64
	Currency         string
	PaymentReference string
	ValidatedAt      pgtype.Timestamptz
	ValidatedBy      pgtype.Text
}

const ticketColumns = `id, event_id, category, name, email, phone,
	ticket_number, qr_secret_hash, manual_code, status, payment_status,
	price, currency, payment_reference, validated_at, validated_by`

type InsertTicketParams struct {
	EventID          int64
	Category         model.Category
	Name             string
	Email            string
	Phone            string
	TicketNumber     string
	QrSecretHash     string
	ManualCode       string
	Status           string
	PaymentStatus    string
	Price            int64
	Currency         string
	PaymentReference string
}

const insertTicket = `INSERT INTO tickets (
	event_id, category, name, email, phone,
	ticket_number, qr_secret_hash, manual_code, status, payment_status,
	price, currency, payment_reference
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`

func (q *Queries) InsertTicket(ctx context.Context, arg InsertTicketParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertTicket,
		arg.EventID, arg.Category, arg.Name, arg.Email, arg.Phone,
		arg.TicketNumber, arg.QrSecretHash, arg.ManualCode, arg.Status, arg.PaymentStatus,
		arg.Price, arg.Currency, arg.PaymentReference,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

const findTicketByNumber = `SELECT ` + ticketColumns + `
FROM tickets WHERE ticket_number = $1`

func (q *Queries) FindTicketByNumber(ctx context.Context, number string) (TicketRow, error) {
	return scanTicket(q.db.QueryRow(ctx, findTicketByNumber, number))
}

const findTicketByManualCode = `SELECT ` + ticketColumns + `
FROM tickets WHERE manual_code = $1`

func (q *Queries) FindTicketByManualCode(ctx context.Context, code string) (TicketRow, error) {
	return scanTicket(q.db.QueryRow(ctx, findTicketByManualCode, code))
}

const findTicketByPaymentReference = `SELECT ` + ticketColumns + `
FROM tickets WHERE payment_reference = $1`

func (q *Queries) FindTicketByPaymentReference(ctx context.Context, reference string) (TicketRow, error) {
	return scanTicket(q.db.QueryRow(ctx, findTicketByPaymentReference, reference))
}

const markTicketPaid = `UPDATE tickets
SET payment_status = 'paid', status = 'paid', updated_at = now()
WHERE payment_reference = $1 AND payment_status = 'pending'`

func (q *Queries) MarkTicketPaid(ctx context.Context, reference string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markTicketPaid, reference)
}

const markTicketPaymentFailed = `UPDATE tickets
SET payment_status = 'failed', updated_at = now()
WHERE payment_reference = $1 AND payment_status = 'pending'`

func (q *Queries) MarkTicketPaymentFailed(ctx context.Context, reference string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markTicketPaymentFailed, reference)
}

// Refunds apply to paid, unused tickets only.
const refundTicket = `UPDATE tickets
SET payment_status = 'refunded', status = 'cancelled', updated_at = now()
WHERE ticket_number = $1 AND payment_status = 'paid' AND status = 'paid'`

func (q *Queries) RefundTicket(ctx context.Context, number string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, refundTicket, number)
}

// MarkTicketUsed mirrors MarkRegistrationAttended for the ticketed path.
const markTicketUsed = `UPDATE tickets
SET status = 'used', validated_at = $2, validated_by = $3, updated_at = now()
WHERE ticket_number = $1 AND status = 'paid'`

type MarkTicketUsedParams struct {
	TicketNumber string
	ValidatedAt  pgtype.Timestamptz
	ValidatedBy  string
}

func (q *Queries) MarkTicketUsed(ctx context.Context, arg MarkTicketUsedParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markTicketUsed, arg.TicketNumber, arg.ValidatedAt, arg.ValidatedBy)
}

// Transfers rebind the owner contact fields; the credential itself never
// changes. Guarded so consumed or cancelled tickets cannot move.
const updateTicketOwner = `UPDATE tickets
SET name = $2, email = $3, phone = $4, updated_at = now()
WHERE ticket_number = $1 AND status NOT IN ('used', 'cancelled')`

type UpdateTicketOwnerParams struct {
	TicketNumber string
	Name         string
	Email        string
	Phone        string
}

func (q *Queries) UpdateTicketOwner(ctx context.Context, arg UpdateTicketOwnerParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updateTicketOwner, arg.TicketNumber, arg.Name, arg.Email, arg.Phone)
}

// The transfer log is append-only; rows are never updated or deleted.
const insertTicketTransfer = `INSERT INTO ticket_transfers (
	ticket_number, seq, from_name, from_email, to_name, to_email
) VALUES (
	$1,
	(SELECT COALESCE(MAX(seq), 0) + 1 FROM ticket_transfers WHERE ticket_number = $1),
	$2, $3, $4, $5
)
RETURNING seq`

type InsertTicketTransferParams struct {
	TicketNumber string
	FromName     string
	FromEmail    string
	ToName       string
	ToEmail      string
}

func (q *Queries) InsertTicketTransfer(ctx context.Context, arg InsertTicketTransferParams) (int32, error) {
	row := q.db.QueryRow(ctx, insertTicketTransfer,
		arg.TicketNumber, arg.FromName, arg.FromEmail, arg.ToName, arg.ToEmail,
	)

	var seq int32
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func scanTicket(row scannable) (TicketRow, error) {
	var t TicketRow
	err := row.Scan(
		&t.ID, &t.EventID, &t.Category, &t.Name, &t.Email, &t.Phone,
		&t.TicketNumber, &t.QrSecretHash, &t.ManualCode, &t.Status, &t.PaymentStatus,
		&t.Price, &t.Currency, &t.PaymentReference, &t.ValidatedAt, &t.ValidatedBy,
	)
	if err != nil {
		return TicketRow{}, err
	}
	return t, nil
}
