package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
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
	"gatepass/outbound/storage"
	"gatepass/outbound/store"
	"gatepass/similarity"
)

// credentialRecord is the method-independent view of a registration or
// ticket at the entrance.
type credentialRecord struct {
	kind          string // "registration" | "ticket"
	uniqueID      string
	eventID       int64
	category      model.Category
	name          string
	email         string
	status        string
	paymentStatus string
	qrSecretHash  string
	facePhotoPath string
}

type ValidationHttp struct {
	Querier         Querier
	Cache           *redis.Client
	Publisher       jetstream.Publisher
	Validate        *validator.Validate
	Files           storage.FileStore
	Thresholds      similarity.Thresholds
	ConfirmTokenTTL time.Duration

	TimeNow func() time.Time
}

func RegisterValidationHttp(
	mux *http.ServeMux,
	querier Querier,
	cache *redis.Client,
	publisher jetstream.Publisher,
	validate *validator.Validate,
	files storage.FileStore,
	thresholds similarity.Thresholds,
	confirmTokenTTL time.Duration,
) *ValidationHttp {
	if confirmTokenTTL <= 0 {
		confirmTokenTTL = constant.ValidationConfirmTokenDefaultTTL
	}

	in := &ValidationHttp{
		Querier:         querier,
		Cache:           cache,
		Publisher:       publisher,
		Validate:        validate,
		Files:           files,
		Thresholds:      thresholds,
		ConfirmTokenTTL: confirmTokenTTL,
		TimeNow:         time.Now,
	}

	mux.HandleFunc("POST /api/validations", in.validateCredential)
	mux.HandleFunc("POST /api/validations/confirm", in.confirm)

	return in
}

func (in ValidationHttp) validateCredential(w http.ResponseWriter, r *http.Request) {
	var req model.ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "ValidationHttp.validateCredential")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "validate credential receive request",
		slog.String("method", req.Method), traceIdAttr)

	var result model.ValidationResult
	var err error

	switch req.Method {
	case model.ValidationMethodQr:
		result, err = in.validateQr(ctx, req, traceIdAttr)
	case model.ValidationMethodManualCode:
		result, err = in.validateManualCode(ctx, req, traceIdAttr)
	case model.ValidationMethodPhoto:
		result, err = in.validatePhoto(ctx, req, traceIdAttr)
	}
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "validate credential decided", traceIdAttr,
		slog.Bool("accepted", result.Accepted), slog.String("reason", result.Reason))

	writeJSONResponse(w, http.StatusOK, result)
}

// validateQr is the highest-trust channel: verify the embedded secret,
// then attempt the exactly-once transition.
func (in ValidationHttp) validateQr(ctx context.Context, req model.ValidationRequest, traceIdAttr slog.Attr) (model.ValidationResult, error) {
	uniqueID, secret, err := credential.DecodePayload(req.QrPayload)
	if err != nil {
		return model.ValidationResult{}, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid credential payload"}
	}

	rec, err := in.findByUniqueId(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rejected(constant.ReasonCredentialNotFound), nil
		}
		slog.ErrorContext(ctx, "failed to find credential", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return model.ValidationResult{}, err
	}

	if !credential.MatchSecret(secret, rec.qrSecretHash) {
		slog.WarnContext(ctx, "qr secret mismatch", traceIdAttr, slog.String("unique_id", uniqueID))
		return rejected(constant.ReasonCredentialMismatch), nil
	}

	if reason := eligibilityReason(rec); reason != "" {
		return rejectedFor(rec, reason), nil
	}

	return in.consume(ctx, rec, req.ValidatedBy, model.ValidationMethodQr, traceIdAttr)
}

// validateManualCode never admits directly: it resolves the participant
// and hands staff a short-lived confirmation token.
func (in ValidationHttp) validateManualCode(ctx context.Context, req model.ValidationRequest, traceIdAttr slog.Attr) (model.ValidationResult, error) {
	if req.ManualCode == "" {
		return model.ValidationResult{}, &errs.HttpError{Code: http.StatusBadRequest, Message: "Manual code required"}
	}

	rec, err := in.findByManualCode(ctx, strings.ToUpper(strings.TrimSpace(req.ManualCode)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rejected(constant.ReasonCredentialNotFound), nil
		}
		slog.ErrorContext(ctx, "failed to find credential by manual code", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return model.ValidationResult{}, err
	}

	if reason := eligibilityReason(rec); reason != "" {
		return rejectedFor(rec, reason), nil
	}

	return in.issueConfirmToken(ctx, rec, model.ValidationMethodManualCode, traceIdAttr, nil)
}

// validatePhoto treats the similarity score as a secondary signal: a high
// score auto-confirms, a mid-range score goes to staff, a low score rejects.
func (in ValidationHttp) validatePhoto(ctx context.Context, req model.ValidationRequest, traceIdAttr slog.Attr) (model.ValidationResult, error) {
	if req.UniqueId == "" || req.LivePhotoPath == "" {
		return model.ValidationResult{}, &errs.HttpError{Code: http.StatusBadRequest, Message: "Unique id and live photo required"}
	}

	rec, err := in.findByUniqueId(ctx, req.UniqueId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rejected(constant.ReasonCredentialNotFound), nil
		}
		slog.ErrorContext(ctx, "failed to find credential", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return model.ValidationResult{}, err
	}

	if reason := eligibilityReason(rec); reason != "" {
		return rejectedFor(rec, reason), nil
	}

	if rec.facePhotoPath == "" {
		return model.ValidationResult{}, &errs.HttpError{Code: http.StatusConflict, Message: "No reference photo on file"}
	}

	score, err := in.score(ctx, rec.facePhotoPath, req.LivePhotoPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to score photos", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return model.ValidationResult{}, err
	}

	thresholds, err := in.effectiveThresholds(ctx, rec.eventID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load event thresholds", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return model.ValidationResult{}, err
	}

	slog.DebugContext(ctx, "photo similarity scored", traceIdAttr,
		slog.Float64("score", score), slog.String("unique_id", rec.uniqueID))

	switch similarity.Classify(score, thresholds) {
	case similarity.ClassAutoApprove:
		result, err := in.consume(ctx, rec, req.ValidatedBy, model.ValidationMethodPhoto, traceIdAttr)
		result.SimilarityScore = &score
		return result, err
	case similarity.ClassManualReview:
		return in.issueConfirmToken(ctx, rec, model.ValidationMethodPhoto, traceIdAttr, &score)
	default:
		result := rejectedFor(rec, constant.ReasonLikelyMismatch)
		result.SimilarityScore = &score
		return result, nil
	}
}

// confirm executes a staff-approved validation for a previously issued
// token. GetDel makes the token single-use even across instances.
func (in ValidationHttp) confirm(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "ValidationHttp.confirm")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "confirm validation receive request", traceIdAttr)

	value, err := in.Cache.GetDel(ctx, fmt.Sprintf(constant.ValidationConfirmTokenKey, req.ConfirmToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			writeJSONResponse(w, http.StatusOK, rejected(constant.ReasonConfirmTokenExpired))
			return
		}
		slog.ErrorContext(ctx, "failed to resolve confirm token", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	uniqueID, method, found := strings.Cut(value, "|")
	if !found {
		method = model.ValidationMethodManualCode
	}

	rec, err := in.findByUniqueId(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSONResponse(w, http.StatusOK, rejected(constant.ReasonCredentialNotFound))
			return
		}
		slog.ErrorContext(ctx, "failed to find credential", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	result, err := in.consume(ctx, rec, req.ValidatedBy, method, traceIdAttr)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "confirm validation decided", traceIdAttr,
		slog.Bool("accepted", result.Accepted), slog.String("reason", result.Reason))

	writeJSONResponse(w, http.StatusOK, result)
}

// consume performs the exactly-once transition. The conditional UPDATE is
// the arbiter under concurrency: of two racing scans exactly one sees a row
// affected, the other re-reads and reports why it lost.
func (in ValidationHttp) consume(ctx context.Context, rec credentialRecord, validatedBy, method string, traceIdAttr slog.Attr) (model.ValidationResult, error) {
	validatedAt := in.TimeNow()
	ts := pgtype.Timestamptz{Time: validatedAt, Valid: true}

	var rowsAffected int64
	switch rec.kind {
	case "registration":
		cmd, err := in.Querier.MarkRegistrationAttended(ctx, store.MarkRegistrationAttendedParams{
			UniqueID:    rec.uniqueID,
			ValidatedAt: ts,
			ValidatedBy: validatedBy,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark registration attended", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			return model.ValidationResult{}, err
		}
		rowsAffected = cmd.RowsAffected()
	default:
		cmd, err := in.Querier.MarkTicketUsed(ctx, store.MarkTicketUsedParams{
			TicketNumber: rec.uniqueID,
			ValidatedAt:  ts,
			ValidatedBy:  validatedBy,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark ticket used", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			return model.ValidationResult{}, err
		}
		rowsAffected = cmd.RowsAffected()
	}

	if rowsAffected == 0 {
		// Lost the race or the state moved since the read. Re-read for
		// the precise reason; the record itself is untouched.
		fresh, err := in.findByUniqueId(ctx, rec.uniqueID)
		if err != nil {
			return rejectedFor(rec, constant.ReasonAlreadyValidated), nil
		}
		reason := eligibilityReason(fresh)
		if reason == "" {
			reason = constant.ReasonAlreadyValidated
		}
		return rejectedFor(fresh, reason), nil
	}

	err := common.PublishMessage(ctx, in.Publisher, constant.SubjectAttendeeValidated, model.AttendeeValidatedEventMessage{
		EventId:     rec.eventID,
		UniqueId:    rec.uniqueID,
		Category:    rec.category,
		Name:        rec.name,
		Email:       rec.email,
		ValidatedBy: validatedBy,
		ValidatedAt: validatedAt.Format(time.RFC3339),
		Method:      method,
	})
	if err != nil {
		// The transition is already durable; the event is best-effort.
		slog.ErrorContext(ctx, "failed to publish attendee validated message", traceIdAttr, slog.Any(constant.LogFieldErr, err))
	}

	return model.ValidationResult{
		Accepted:    true,
		Participant: summaryOf(rec),
	}, nil
}

// issueConfirmToken parks the pending validation in redis. The value keeps
// the originating method next to the unique id so the eventual admit is
// reported against the right channel.
func (in ValidationHttp) issueConfirmToken(ctx context.Context, rec credentialRecord, method string, traceIdAttr slog.Attr, score *float64) (model.ValidationResult, error) {
	token, err := credential.NewConfirmToken()
	if err != nil {
		return model.ValidationResult{}, err
	}

	value := rec.uniqueID + "|" + method
	ok, err := in.Cache.SetNX(ctx, fmt.Sprintf(constant.ValidationConfirmTokenKey, token), value, in.ConfirmTokenTTL).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to store confirm token", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return model.ValidationResult{}, err
	}
	if !ok {
		return model.ValidationResult{}, fmt.Errorf("confirm token collision")
	}

	return model.ValidationResult{
		PendingConfirmation: true,
		ConfirmToken:        token,
		SimilarityScore:     score,
		Participant:         summaryOf(rec),
	}, nil
}

func (in ValidationHttp) score(ctx context.Context, referencePath, livePath string) (float64, error) {
	refBytes, err := in.Files.Load(ctx, referencePath)
	if err != nil {
		return 0, err
	}

	liveBytes, err := in.Files.Load(ctx, livePath)
	if err != nil {
		return 0, err
	}

	refImg, err := similarity.Decode(refBytes)
	if err != nil {
		return 0, err
	}

	liveImg, err := similarity.Decode(liveBytes)
	if err != nil {
		return 0, err
	}

	return similarity.Score(refImg, liveImg), nil
}

// effectiveThresholds layers event overrides on the instance defaults.
func (in ValidationHttp) effectiveThresholds(ctx context.Context, eventID int64) (similarity.Thresholds, error) {
	ev, err := in.Querier.FindEventById(ctx, eventID)
	if err != nil {
		return similarity.Thresholds{}, err
	}

	thresholds := in.Thresholds
	if ev.Similarity.AutoApprove > 0 {
		thresholds.AutoApprove = ev.Similarity.AutoApprove
	}
	if ev.Similarity.ManualReview > 0 {
		thresholds.ManualReview = ev.Similarity.ManualReview
	}

	return thresholds, nil
}

func (in ValidationHttp) findByUniqueId(ctx context.Context, uniqueID string) (credentialRecord, error) {
	if strings.HasPrefix(uniqueID, constant.TicketNumberPrefix+"-") {
		row, err := in.Querier.FindTicketByNumber(ctx, uniqueID)
		if err != nil {
			return credentialRecord{}, err
		}
		return ticketRecord(row), nil
	}

	row, err := in.Querier.FindRegistrationByUniqueId(ctx, uniqueID)
	if err != nil {
		return credentialRecord{}, err
	}
	return registrationRecord(row), nil
}

func (in ValidationHttp) findByManualCode(ctx context.Context, code string) (credentialRecord, error) {
	row, err := in.Querier.FindRegistrationByManualCode(ctx, code)
	if err == nil {
		return registrationRecord(row), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return credentialRecord{}, err
	}

	ticket, err := in.Querier.FindTicketByManualCode(ctx, code)
	if err != nil {
		return credentialRecord{}, err
	}
	return ticketRecord(ticket), nil
}

func registrationRecord(row store.RegistrationRow) credentialRecord {
	return credentialRecord{
		kind:          "registration",
		uniqueID:      row.UniqueID,
		eventID:       row.EventID,
		category:      row.Category,
		name:          row.Name,
		email:         row.Email,
		status:        row.Status,
		paymentStatus: row.PaymentStatus,
		qrSecretHash:  row.QrSecretHash,
		facePhotoPath: row.FacePhotoPath.String,
	}
}

func ticketRecord(row store.TicketRow) credentialRecord {
	return credentialRecord{
		kind:          "ticket",
		uniqueID:      row.TicketNumber,
		eventID:       row.EventID,
		category:      row.Category,
		name:          row.Name,
		email:         row.Email,
		status:        row.Status,
		paymentStatus: row.PaymentStatus,
		qrSecretHash:  row.QrSecretHash,
	}
}

// eligibilityReason maps the current state to a rejection reason; empty
// means eligible for the attended transition.
func eligibilityReason(rec credentialRecord) string {
	switch rec.kind {
	case "registration":
		switch rec.status {
		case model.RegistrationStatusConfirmed:
			return ""
		case model.RegistrationStatusAttended:
			return constant.ReasonAlreadyValidated
		case model.RegistrationStatusCancelled:
			return constant.ReasonCancelled
		case model.RegistrationStatusPending:
			if rec.paymentStatus == model.PaymentStatusPending || rec.paymentStatus == model.PaymentStatusFailed {
				return constant.ReasonPaymentPending
			}
			return constant.ReasonNotConfirmed
		}
	default:
		switch rec.status {
		case model.TicketStatusPaid:
			return ""
		case model.TicketStatusUsed:
			return constant.ReasonAlreadyValidated
		case model.TicketStatusCancelled:
			return constant.ReasonCancelled
		case model.TicketStatusPending:
			return constant.ReasonPaymentPending
		}
	}
	return constant.ReasonNotConfirmed
}

func summaryOf(rec credentialRecord) *model.ParticipantSummary {
	return &model.ParticipantSummary{
		Name:     rec.name,
		Category: rec.category,
		EventId:  rec.eventID,
		UniqueId: rec.uniqueID,
	}
}

func rejected(reason string) model.ValidationResult {
	return model.ValidationResult{Accepted: false, Reason: reason}
}

func rejectedFor(rec credentialRecord, reason string) model.ValidationResult {
	return model.ValidationResult{Accepted: false, Reason: reason, Participant: summaryOf(rec)}
}
