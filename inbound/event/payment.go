package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go/jetstream"

	"gatepass/common"
	"gatepass/common/constant"
	"gatepass/common/otel"
	"gatepass/model"
	"gatepass/outbound/store"
)

// PaymentEvent reconciles gateway callbacks against registrations and
// tickets. Callbacks may arrive duplicated or out of order; every write
// here is a conditional update so replays are no-ops.
type PaymentEvent struct {
	Querier   *store.Queries
	Publisher jetstream.Publisher

	Timeout time.Duration
}

func (in PaymentEvent) CallbackHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.PaymentCallbackRequest
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "payment callback event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	ctx, span := otel.Tracer.Start(ctx, "PaymentEvent.callback")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.InfoContext(ctx, "payment callback event receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	handled, err := in.reconcileRegistration(ctx, req, traceIdAttr)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	handled, err = in.reconcileTicket(ctx, req, traceIdAttr)
	if err != nil {
		return err
	}
	if !handled {
		// Unknown references are dropped, not retried: a retry cannot
		// make the reference exist.
		slog.WarnContext(ctx, "payment reference not found", traceIdAttr, slog.String("reference", req.Reference))
	}

	return nil
}

func (in PaymentEvent) reconcileRegistration(ctx context.Context, req model.PaymentCallbackRequest, traceIdAttr slog.Attr) (bool, error) {
	reg, err := in.Querier.FindRegistrationByPaymentReference(ctx, req.Reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		slog.ErrorContext(ctx, "failed to get registration", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return false, err
	}

	if req.Outcome == model.PaymentOutcomeFailure {
		_, err = in.Querier.MarkRegistrationPaymentFailed(ctx, req.Reference)
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark registration payment failed", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			return false, err
		}
		return true, nil
	}

	cmd, err := in.Querier.MarkRegistrationPaid(ctx, req.Reference)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark registration paid", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return false, err
	}

	if cmd.RowsAffected() == 0 {
		// Already reconciled by an earlier delivery. No downstream
		// re-emit, or the participant gets the email twice.
		slog.WarnContext(ctx, "registration payment already reconciled", traceIdAttr, slog.String("reference", req.Reference))
		return true, nil
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectPaymentSucceeded, model.PaymentSucceededEventMessage{
		Reference:  req.Reference,
		Kind:       "registration",
		Credential: reg.UniqueID,
		Name:       reg.Name,
		Email:      reg.Email,
		Amount:     reg.PaymentAmount,
		Currency:   reg.PaymentCurrency,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish payment succeeded message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return false, err
	}

	slog.InfoContext(ctx, "registration payment reconciled", traceIdAttr, slog.String("unique_id", reg.UniqueID))

	return true, nil
}

func (in PaymentEvent) reconcileTicket(ctx context.Context, req model.PaymentCallbackRequest, traceIdAttr slog.Attr) (bool, error) {
	ticket, err := in.Querier.FindTicketByPaymentReference(ctx, req.Reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		slog.ErrorContext(ctx, "failed to get ticket", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return false, err
	}

	if req.Outcome == model.PaymentOutcomeFailure {
		_, err = in.Querier.MarkTicketPaymentFailed(ctx, req.Reference)
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark ticket payment failed", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			return false, err
		}
		return true, nil
	}

	cmd, err := in.Querier.MarkTicketPaid(ctx, req.Reference)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark ticket paid", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return false, err
	}

	if cmd.RowsAffected() == 0 {
		slog.WarnContext(ctx, "ticket payment already reconciled", traceIdAttr, slog.String("reference", req.Reference))
		return true, nil
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectPaymentSucceeded, model.PaymentSucceededEventMessage{
		Reference:  req.Reference,
		Kind:       "ticket",
		Credential: ticket.TicketNumber,
		Name:       ticket.Name,
		Email:      ticket.Email,
		Amount:     ticket.Price,
		Currency:   ticket.Currency,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish payment succeeded message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return false, err
	}

	slog.InfoContext(ctx, "ticket payment reconciled", traceIdAttr, slog.String("ticket_number", ticket.TicketNumber))

	return true, nil
}
