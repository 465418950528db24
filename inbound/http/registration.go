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
	"github.com/jackc/pgx/v5/pgtype"
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
	"gatepass/regform"
)

type RegistrationHttp struct {
	Querier   Querier
	Cache     *redis.Client
	Publisher jetstream.Publisher
	Validate  *validator.Validate
	Schema    regform.Schema

	TimeNow func() time.Time
}

func RegisterRegistrationHttp(
	mux *http.ServeMux,
	querier Querier,
	cache *redis.Client,
	publisher jetstream.Publisher,
	validate *validator.Validate,
) *RegistrationHttp {
	in := &RegistrationHttp{
		Querier:   querier,
		Cache:     cache,
		Publisher: publisher,
		Validate:  validate,
		Schema:    regform.Default,
		TimeNow:   time.Now,
	}

	mux.HandleFunc("POST /api/registrations", in.create)

	return in
}

func (in RegistrationHttp) create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.validateCreateRequest(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "RegistrationHttp.create")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "create registration receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

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

	if ev.Ticketed {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Ticketed event, purchase a ticket instead"})
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

	if fieldErrors := in.Schema.Validate(req.Category, req.Fields); len(fieldErrors) > 0 {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Validation failed", Data: fieldErrors})
		return
	}

	quote := pricing.Resolve(ev, req.Category)
	if quote.PaymentRequired && req.ReceiptPath == "" {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: constant.ReasonPaymentProofRequired})
		return
	}

	emailLock, err := in.Cache.SetNX(ctx, fmt.Sprintf(constant.RegistrationEmailLock, req.EventId, req.Email), true, constant.RegistrationEmailLockDefaultTTL).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to set email lock", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if !emailLock {
		slog.DebugContext(ctx, "email already registered", traceIdAttr)
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Email already registered"})
		return
	}

	emailExist, err := in.Querier.ExistsRegistrationByEmail(ctx, req.EventId, req.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find registration by email", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if emailExist {
		slog.DebugContext(ctx, "email already registered", traceIdAttr)
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: "Email already registered"})
		return
	}

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

	status := model.RegistrationStatusConfirmed
	paymentStatus := model.PaymentStatusNotRequired
	paymentReference := pgtype.Text{}
	if quote.PaymentRequired {
		status = model.RegistrationStatusPending
		paymentStatus = model.PaymentStatusPending
		paymentReference = pgtype.Text{String: credential.NewPaymentReference(), Valid: true}
	}

	fieldsJson, err := json.Marshal(req.Fields)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal fields", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	var returnId int64
	var cred issuedCredential
	returnId, cred, err = issueCredentialed(ctx, in.Querier, constant.RegistrationIdPrefix, traceIdAttr, func(c issuedCredential) (int64, error) {
		return in.Querier.IssueRegistration(ctx, store.InsertRegistrationParams{
			EventID:              req.EventId,
			Category:             req.Category,
			Name:                 req.Name,
			Email:                req.Email,
			Phone:                req.Phone,
			FieldsJson:           fieldsJson,
			UniqueID:             c.uniqueID,
			QrSecretHash:         credential.HashSecret(c.secret),
			ManualCode:           c.manualCode,
			Status:               status,
			PaymentStatus:        paymentStatus,
			PaymentAmount:        quote.Amount,
			PaymentCurrency:      quote.Currency,
			PaymentReference:     paymentReference,
			ReceiptPath:          textOrNull(req.ReceiptPath),
			ReceiptPendingReview: quote.PaymentRequired && req.ReceiptPath != "",
			FacePhotoPath:        textOrNull(req.FacePhotoPath),
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrCapacityExceeded) {
			writeErrorResponse(w, &errs.HttpError{Code: http.StatusConflict, Message: constant.ReasonCapacityExceeded})
			return
		}
		slog.ErrorContext(ctx, "failed to issue registration", traceIdAttr, slog.Any(constant.LogFieldErr, err))
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
		PaymentReference: paymentReference.String,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish registration confirmed message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "issue registration success", traceIdAttr, slog.Any(constant.LogFieldResponse, returnId))

	writeJSONResponse(w, http.StatusOK, model.CreateRegistrationResponse{
		Id:               returnId,
		UniqueId:         cred.uniqueID,
		QrPayload:        credential.EncodePayload(cred.uniqueID, cred.secret),
		ManualCode:       cred.manualCode,
		Status:           status,
		PaymentStatus:    paymentStatus,
		PaymentReference: paymentReference.String,
		Amount:           quote.Amount,
		Currency:         quote.Currency,
	})
}

func (in RegistrationHttp) validateCreateRequest(req model.CreateRegistrationRequest) error {
	if err := in.Validate.Struct(req); err != nil {
		return err
	}

	if !req.Category.Valid() {
		return &errs.HttpError{
			Code:    http.StatusBadRequest,
			Message: "Validation failed",
			Data: map[string]any{
				"Category": "not found",
			},
		}
	}

	return nil
}
