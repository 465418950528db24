package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"gatepass/common"
	"gatepass/common/constant"
	"gatepass/common/errs"
	"gatepass/common/otel"
	"gatepass/credential"
	"gatepass/model"
	"gatepass/outbound/store"
	"gatepass/pricing"
)

type TicketHttp struct {
	Querier   Querier
	Cache     *redis.Client
	Publisher jetstream.Publisher
	Validate  *validator.Validate

	TimeNow func() time.Time
}

func RegisterTicketHttp(
	mux *http.ServeMux,
	querier Querier,
	cache *redis.Client,
	publisher jetstream.Publisher,
	validate *validator.Validate,
) *TicketHttp {
	in := &TicketHttp{
		Querier:   querier,
		Cache:     cache,
		Publisher: publisher,
		Validate:  validate,
		TimeNow:   time.Now,
	}

	mux.HandleFunc("POST /api/tickets", in.purchase)
	mux.HandleFunc("POST /api/tickets/transfer", in.transfer)
	mux.HandleFunc("POST /api/tickets/refund", in.refund)

	return in
}

func (in TicketHttp) purchase(w http.ResponseWriter, r *http.Request) {
	var req model.PurchaseTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	if !req.Category.Valid() {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Validation failed", Data: map[string]any{"Category": "not found"}})
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TicketHttp.purchase")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "purchase ticket receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	ev, err := in.Querier.FindEventById(ctx, req.EventId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeErrorResponse(w, &errs.HttpError{Code: http.StatusNotFound, Message: "Event not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to find event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if !ev.Ticketed {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Not a ticketed event, register instead"})
		return
	}

	if !ev.CategoryAllowed(req.Category) {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: constant.ReasonCategoryNotAllowed})
		return
	}

	if !ev.RegistrationOpen(in.TimeNow()) {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: constant.ReasonWindowClosed})
		return
	}

	quote := pricing.Resolve(ev, req.Category)

	atomicVal, err := in.Cache.Decr(ctx, fmt.Sprintf(constant.EventCapacityKey, req.EventId)).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrement event capacity", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if atomicVal < 0 {
		slog.DebugContext(ctx, "event at capacity", traceIdAttr)

		redisErr := in.Cache.Incr(ctx, fmt.Sprintf(constant.EventCapacityKey, req.EventId)).Err()
		if redisErr != nil {
			slog.ErrorContext(ctx, "failed to increment event capacity", traceIdAttr, slog.Any(constant.LogFieldErr, redisErr))
		}

		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: constant.ReasonCapacityExceeded})
		return
	}

	defer func() {
		if err != nil {
			redisErr := in.Cache.Incr(ctx, fmt.Sprintf(constant.EventCapacityKey, req.EventId)).Err()
			if redisErr != nil {
				slog.ErrorContext(ctx, "failed to increment event capacity", traceIdAttr, slog.Any(constant.LogFieldErr, redisErr))
			}
		}
	}()

	// Tickets have no not_required state: a free ticket is born paid.
	status := model.TicketStatusPaid
	paymentStatus := model.PaymentStatusPaid
	if quote.PaymentRequired {
		status = model.TicketStatusPending
		paymentStatus = model.PaymentStatusPending
	}

	paymentReference := credential.NewPaymentReference()

	var returnId int64
	var cred issuedCredential
	returnId, cred, err = issueCredentialed(ctx, in.Querier, constant.TicketNumberPrefix, traceIdAttr, func(c issuedCredential) (int64, error) {
		return in.Querier.IssueTicket(ctx, store.InsertTicketParams{
			EventID:          req.EventId,
			Category:         req.Category,
			Name:             req.Name,
			Email:            req.Email,
			Phone:            req.Phone,
			TicketNumber:     c.uniqueID,
			QrSecretHash:     credential.HashSecret(c.secret),
			ManualCode:       c.manualCode,
			Status:           status,
			PaymentStatus:    paymentStatus,
			Price:            quote.Amount,
			Currency:         quote.Currency,
			PaymentReference: paymentReference,
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrCapacityExceeded) {
			writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: constant.ReasonCapacityExceeded})
			return
		}
		slog.ErrorContext(ctx, "failed to issue ticket", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectRegistrationConfirmed, model.RegistrationConfirmedEventMessage{
		Id:               returnId,
		EventId:          req.EventId,
		EventName:        ev.Name,
		Category:         req.Category,
		Name:             req.Name,
		Email:            req.Email,
		UniqueId:         cred.uniqueID,
		ManualCode:       cred.manualCode,
		PaymentRequired:  quote.PaymentRequired,
		Amount:           quote.Amount,
		Currency:         quote.Currency,
		PaymentReference: paymentReference,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish ticket confirmed message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "issue ticket success", traceIdAttr, slog.Any(constant.LogFieldResponse, returnId))

	writeJSONResponse(w, http.StatusOK, model.PurchaseTicketResponse{
		Id:               returnId,
		TicketNumber:     cred.uniqueID,
		QrPayload:        credential.EncodePayload(cred.uniqueID, cred.secret),
		ManualCode:       cred.manualCode,
		Status:           status,
		PaymentStatus:    paymentStatus,
		PaymentReference: paymentReference,
		Amount:           quote.Amount,
		Currency:         quote.Currency,
	})
}

func (in TicketHttp) transfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TicketHttp.transfer")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "transfer ticket receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	seq, err := in.Querier.TransferTicket(ctx, store.TransferTicketParams{
		TicketNumber: req.TicketNumber,
		ToName:       req.ToName,
		ToEmail:      req.ToEmail,
		ToPhone:      req.ToPhone,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Ticket not transferable"})
			return
		}
		slog.ErrorContext(ctx, "failed to transfer ticket", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "transfer ticket success", traceIdAttr, slog.Any(constant.LogFieldResponse, req.TicketNumber))

	writeJSONResponse(w, http.StatusOK, model.TransferTicketResponse{
		TicketNumber: req.TicketNumber,
		ToName:       req.ToName,
		ToEmail:      req.ToEmail,
		TransferSeq:  seq,
	})
}

func (in TicketHttp) refund(w http.ResponseWriter, r *http.Request) {
	var req model.RefundTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TicketHttp.refund")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "refund ticket receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	cmd, err := in.Querier.RefundTicket(ctx, req.TicketNumber)
	if err != nil {
		slog.ErrorContext(ctx, "failed to refund ticket", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}
	if cmd.RowsAffected() == 0 {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Ticket not refundable"})
		return
	}

	slog.InfoContext(ctx, "refund ticket success", traceIdAttr, slog.String("ticket_number", req.TicketNumber))
	w.WriteHeader(http.StatusOK)
}
