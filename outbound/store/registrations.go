package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"gatepass/model"
)

type RegistrationRow struct {
	ID                   int64
	EventID              int64
	Category             model.Category
	Name                 string
	Email                string
	Phone                string
	UniqueID             string
	QrSecretHash         string
	ManualCode           string
	Status               string
	PaymentStatus        string
	PaymentAmount        int64
	PaymentCurrency      string
	PaymentReference     pgtype.Text
	ReceiptPath          pgtype.Text
	ReceiptPendingReview bool
	FacePhotoPath        pgtype.Text
	ValidatedAt          pgtype.Timestamptz
	ValidatedBy          pgtype.Text
}

const registrationColumns = `id, event_id, category, name, email, phone,
	unique_id, qr_secret_hash, manual_code, status, payment_status,
	payment_amount, payment_currency, payment_reference,
	receipt_path, receipt_pending_review, face_photo_path,
	validated_at, validated_by`

type InsertRegistrationParams struct {
	EventID              int64
	Category             model.Category
	Name                 string
	Email                string
	Phone                string
	FieldsJson           []byte
	UniqueID             string
	QrSecretHash         string
	ManualCode           string
	Status               string
	PaymentStatus        string
	PaymentAmount        int64
	PaymentCurrency      string
	PaymentReference     pgtype.Text
	ReceiptPath          pgtype.Text
	ReceiptPendingReview bool
	FacePhotoPath        pgtype.Text
}

const insertRegistration = `INSERT INTO registrations (
	event_id, category, name, email, phone, fields,
	unique_id, qr_secret_hash, manual_code, status, payment_status,
	payment_amount, payment_currency, payment_reference,
	receipt_path, receipt_pending_review, face_photo_path
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING id`

func (q *Queries) InsertRegistration(ctx context.Context, arg InsertRegistrationParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertRegistration,
		arg.EventID, arg.Category, arg.Name, arg.Email, arg.Phone, arg.FieldsJson,
		arg.UniqueID, arg.QrSecretHash, arg.ManualCode, arg.Status, arg.PaymentStatus,
		arg.PaymentAmount, arg.PaymentCurrency, arg.PaymentReference,
		arg.ReceiptPath, arg.ReceiptPendingReview, arg.FacePhotoPath,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// CredentialExists collision-checks a freshly generated credential against
// both credential tables before it is accepted. The unique indexes are per
// table, so a collision with a concurrent insert into the other table slips
// past both; with 256-bit secrets and ULID unique ids the residual window
// needs a same-instant generation of identical values to matter.
const credentialExists = `SELECT EXISTS (
	SELECT 1 FROM registrations WHERE unique_id = $1 OR manual_code = $2 OR qr_secret_hash = $3
) OR EXISTS (
	SELECT 1 FROM tickets WHERE ticket_number = $1 OR manual_code = $2 OR qr_secret_hash = $3
) AS "exists"`

func (q *Queries) CredentialExists(ctx context.Context, uniqueID, manualCode, qrSecretHash string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, credentialExists, uniqueID, manualCode, qrSecretHash).Scan(&exists)
	return exists, err
}

const existsPendingRegistrationByEmail = `SELECT EXISTS (
	SELECT 1 FROM registrations WHERE event_id = $1 AND email = $2 AND status <> 'cancelled'
) AS "exists"`

func (q *Queries) ExistsRegistrationByEmail(ctx context.Context, eventID int64, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, existsPendingRegistrationByEmail, eventID, email).Scan(&exists)
	return exists, err
}

const findRegistrationByUniqueId = `SELECT ` + registrationColumns + `
FROM registrations WHERE unique_id = $1`

func (q *Queries) FindRegistrationByUniqueId(ctx context.Context, uniqueID string) (RegistrationRow, error) {
	return scanRegistration(q.db.QueryRow(ctx, findRegistrationByUniqueId, uniqueID))
}

const findRegistrationByManualCode = `SELECT ` + registrationColumns + `
FROM registrations WHERE manual_code = $1`

func (q *Queries) FindRegistrationByManualCode(ctx context.Context, code string) (RegistrationRow, error) {
	return scanRegistration(q.db.QueryRow(ctx, findRegistrationByManualCode, code))
}

const findRegistrationByPaymentReference = `SELECT ` + registrationColumns + `
FROM registrations WHERE payment_reference = $1`

func (q *Queries) FindRegistrationByPaymentReference(ctx context.Context, reference string) (RegistrationRow, error) {
	return scanRegistration(q.db.QueryRow(ctx, findRegistrationByPaymentReference, reference))
}

// MarkRegistrationPaid applies the gateway success outcome. The predicate
// makes duplicate callbacks no-ops: a second success finds payment_status
// already 'paid' and affects zero rows.
const markRegistrationPaid = `UPDATE registrations
SET payment_status = 'paid', status = 'confirmed', receipt_pending_review = FALSE, updated_at = now()
WHERE payment_reference = $1 AND payment_status = 'pending'`

func (q *Queries) MarkRegistrationPaid(ctx context.Context, reference string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markRegistrationPaid, reference)
}

// The registration itself stays pending on failure; the participant may
// retry payment without re-registering.
const markRegistrationPaymentFailed = `UPDATE registrations
SET payment_status = 'failed', updated_at = now()
WHERE payment_reference = $1 AND payment_status = 'pending'`

func (q *Queries) MarkRegistrationPaymentFailed(ctx context.Context, reference string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markRegistrationPaymentFailed, reference)
}

const retryRegistrationPayment = `UPDATE registrations
SET payment_status = 'pending', updated_at = now()
WHERE unique_id = $1 AND payment_status = 'failed'`

func (q *Queries) RetryRegistrationPayment(ctx context.Context, uniqueID string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, retryRegistrationPayment, uniqueID)
}

const attachRegistrationReceipt = `UPDATE registrations
SET receipt_path = $2, receipt_pending_review = TRUE, payment_status = 'pending', updated_at = now()
WHERE unique_id = $1 AND payment_status IN ('pending', 'failed')`

func (q *Queries) AttachRegistrationReceipt(ctx context.Context, uniqueID, receiptPath string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, attachRegistrationReceipt, uniqueID, receiptPath)
}

// Receipt review is the only way a manual-receipt payment reaches 'paid';
// it never auto-transitions.
const approveRegistrationReceipt = `UPDATE registrations
SET payment_status = 'paid', status = 'confirmed', receipt_pending_review = FALSE, updated_at = now()
WHERE unique_id = $1 AND payment_status = 'pending' AND receipt_pending_review`

func (q *Queries) ApproveRegistrationReceipt(ctx context.Context, uniqueID string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, approveRegistrationReceipt, uniqueID)
}

const rejectRegistrationReceipt = `UPDATE registrations
SET payment_status = 'failed', receipt_pending_review = FALSE, updated_at = now()
WHERE unique_id = $1 AND payment_status = 'pending' AND receipt_pending_review`

func (q *Queries) RejectRegistrationReceipt(ctx context.Context, uniqueID string) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, rejectRegistrationReceipt, uniqueID)
}

// MarkRegistrationAttended is the exactly-once entrance transition: one
// atomic check-and-set. Two concurrent scans of the same credential race on
// this statement and exactly one sees RowsAffected == 1.
const markRegistrationAttended = `UPDATE registrations
SET status = 'attended', validated_at = $2, validated_by = $3, updated_at = now()
WHERE unique_id = $1 AND status = 'confirmed'`

type MarkRegistrationAttendedParams struct {
	UniqueID    string
	ValidatedAt pgtype.Timestamptz
	ValidatedBy string
}

func (q *Queries) MarkRegistrationAttended(ctx context.Context, arg MarkRegistrationAttendedParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markRegistrationAttended, arg.UniqueID, arg.ValidatedAt, arg.ValidatedBy)
}

func scanRegistration(row scannable) (RegistrationRow, error) {
	var r RegistrationRow
	err := row.Scan(
		&r.ID, &r.EventID, &r.Category, &r.Name, &r.Email, &r.Phone,
		&r.UniqueID, &r.QrSecretHash, &r.ManualCode, &r.Status, &r.PaymentStatus,
		&r.PaymentAmount, &r.PaymentCurrency, &r.PaymentReference,
		&r.ReceiptPath, &r.ReceiptPendingReview, &r.FacePhotoPath,
		&r.ValidatedAt, &r.ValidatedBy,
	)
	if err != nil {
		return RegistrationRow{}, err
	}
	return r, nil
}
