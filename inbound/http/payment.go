package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go/jetstream"

	"gatepass/common"
	"gatepass/common/constant"
	"gatepass/common/errs"
	"gatepass/common/otel"
	"gatepass/model"
)

// PaymentHttp only acknowledges and enqueues. Reconciliation happens in the
// queue consumer so a slow database never blocks the gateway callback.
type PaymentHttp struct {
	Querier   Querier
	Publisher jetstream.Publisher
	Validate  *validator.Validate
}

func RegisterPaymentHttp(
	mux *http.ServeMux,
	querier Querier,
	publisher jetstream.Publisher,
	validate *validator.Validate,
) *PaymentHttp {
	in := &PaymentHttp{
		Querier:   querier,
		Publisher: publisher,
		Validate:  validate,
	}

	mux.HandleFunc("POST /api/payments/callback", in.callback)
	mux.HandleFunc("POST /api/payments/retry", in.retryPayment)
	mux.HandleFunc("POST /api/registrations/receipt", in.attachReceipt)
	mux.HandleFunc("POST /api/registrations/receipt/review", in.reviewReceipt)

	return in
}

func (in PaymentHttp) callback(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx := r.Context()
	err := common.PublishMessage(ctx, in.Publisher, constant.SubjectPaymentCallback, req)
	if err != nil {
		slog.ErrorContext(ctx, "error publish message when callback payment", slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// retryPayment re-arms a failed payment so the gateway can deliver a fresh
// callback against the same reference.
func (in PaymentHttp) retryPayment(w http.ResponseWriter, r *http.Request) {
	var req model.RetryPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "PaymentHttp.retryPayment")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	cmd, err := in.Querier.RetryRegistrationPayment(ctx, req.UniqueId)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retry payment", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}
	if cmd.RowsAffected() == 0 {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "No failed payment to retry"})
		return
	}

	slog.InfoContext(ctx, "payment retry armed", traceIdAttr, slog.String("unique_id", req.UniqueId))
	w.WriteHeader(http.StatusOK)
}

func (in PaymentHttp) attachReceipt(w http.ResponseWriter, r *http.Request) {
	var req model.AttachReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "PaymentHttp.attachReceipt")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	cmd, err := in.Querier.AttachRegistrationReceipt(ctx, req.UniqueId, req.ReceiptPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to attach receipt", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}
	if cmd.RowsAffected() == 0 {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Registration not awaiting payment"})
		return
	}

	slog.InfoContext(ctx, "receipt attached", traceIdAttr, slog.String("unique_id", req.UniqueId))
	w.WriteHeader(http.StatusOK)
}

func (in PaymentHttp) reviewReceipt(w http.ResponseWriter, r *http.Request) {
	var req model.ReviewReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "PaymentHttp.reviewReceipt")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	var err error
	var rowsAffected int64
	if req.Approve {
		tag, approveErr := in.Querier.ApproveRegistrationReceipt(ctx, req.UniqueId)
		err = approveErr
		rowsAffected = tag.RowsAffected()
	} else {
		tag, rejectErr := in.Querier.RejectRegistrationReceipt(ctx, req.UniqueId)
		err = rejectErr
		rowsAffected = tag.RowsAffected()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to review receipt", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}
	if rowsAffected == 0 {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "No receipt pending review"})
		return
	}

	if req.Approve {
		reg, findErr := in.Querier.FindRegistrationByUniqueId(ctx, req.UniqueId)
		if findErr == nil {
			publishErr := common.PublishMessage(ctx, in.Publisher, constant.SubjectPaymentSucceeded, model.PaymentSucceededEventMessage{
				Reference:  reg.PaymentReference.String,
				Kind:       "registration",
				Credential: reg.UniqueID,
				Name:       reg.Name,
				Email:      reg.Email,
				Amount:     reg.PaymentAmount,
				Currency:   reg.PaymentCurrency,
			})
			if publishErr != nil {
				slog.ErrorContext(ctx, "error publish message when review receipt", traceIdAttr, slog.Any(constant.LogFieldErr, publishErr))
			}
		}
	}

	slog.InfoContext(ctx, "receipt reviewed", traceIdAttr,
		slog.String("unique_id", req.UniqueId), slog.Bool("approved", req.Approve),
		slog.String("reviewer_id", req.ReviewerId))

	w.WriteHeader(http.StatusOK)
}
