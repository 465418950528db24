package http

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"gatepass/model"
	"gatepass/outbound/store"
)

// Querier is the slice of the store these handlers consume. *store.Queries
// satisfies it; tests substitute pgxmock-backed queries or an in-memory
// fake for race simulations.
type Querier interface {
	FindEventById(ctx context.Context, id int64) (model.EventConfig, error)

	CredentialExists(ctx context.Context, uniqueID, manualCode, qrSecretHash string) (bool, error)
	ExistsRegistrationByEmail(ctx context.Context, eventID int64, email string) (bool, error)
	IssueRegistration(ctx context.Context, arg store.InsertRegistrationParams) (int64, error)
	FindRegistrationByUniqueId(ctx context.Context, uniqueID string) (store.RegistrationRow, error)
	FindRegistrationByManualCode(ctx context.Context, code string) (store.RegistrationRow, error)
	MarkRegistrationAttended(ctx context.Context, arg store.MarkRegistrationAttendedParams) (pgconn.CommandTag, error)
	AttachRegistrationReceipt(ctx context.Context, uniqueID, receiptPath string) (pgconn.CommandTag, error)
	ApproveRegistrationReceipt(ctx context.Context, uniqueID string) (pgconn.CommandTag, error)
	RejectRegistrationReceipt(ctx context.Context, uniqueID string) (pgconn.CommandTag, error)
	RetryRegistrationPayment(ctx context.Context, uniqueID string) (pgconn.CommandTag, error)

	IssueTicket(ctx context.Context, arg store.InsertTicketParams) (int64, error)
	FindTicketByNumber(ctx context.Context, number string) (store.TicketRow, error)
	FindTicketByManualCode(ctx context.Context, code string) (store.TicketRow, error)
	MarkTicketUsed(ctx context.Context, arg store.MarkTicketUsedParams) (pgconn.CommandTag, error)
	TransferTicket(ctx context.Context, arg store.TransferTicketParams) (int32, error)
	RefundTicket(ctx context.Context, number string) (pgconn.CommandTag, error)
}

var _ Querier = (*store.Queries)(nil)
