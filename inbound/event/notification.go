package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/message"

	"gatepass/common"
	"gatepass/common/constant"
	"gatepass/model"
)

// NotificationEvent turns domain events into outbound emails. It only
// composes and re-publishes; actual SMTP delivery is the email consumer's
// job so a slow mail server cannot back up the domain stream.
type NotificationEvent struct {
	Publisher         jetstream.Publisher
	CurrencyFormatter *message.Printer

	Timeout time.Duration
}

func (in NotificationEvent) RegistrationConfirmedHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.RegistrationConfirmedEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "registration confirmed event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	traceIdAttr := slog.String(constant.LogFieldTraceId, ulid.Make().String())
	reqAttr := slog.Any(constant.LogFieldPayload, string(msg))

	sendEmailReq := model.SendEmailEventMessage{
		To:      req.Email,
		Subject: fmt.Sprintf("Registration Confirmation - %s", req.EventName),
		Body:    in.buildRegistrationConfirmationBody(req),
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendEmail, sendEmailReq)
	if err != nil {
		slog.ErrorContext(ctx, "registration confirmed event publish error", slog.Any(constant.LogFieldErr, err), reqAttr, traceIdAttr)
		return err
	}

	slog.DebugContext(ctx, "registration confirmed event publish success", reqAttr, traceIdAttr)

	return nil
}

func (in NotificationEvent) buildRegistrationConfirmationBody(req model.RegistrationConfirmedEventMessage) string {
	var paymentBlock string
	if req.PaymentRequired {
		paymentBlock = fmt.Sprintf(constant.EmailPaymentInstructionsBlock,
			in.formatAmount(req.Amount, req.Currency),
			req.PaymentReference,
		)
	}

	return fmt.Sprintf(constant.EmailRegistrationConfirmationTemplate,
		req.Name,
		req.EventName,
		req.UniqueId,
		req.ManualCode,
		paymentBlock,
	)
}

func (in NotificationEvent) PaymentSucceededHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.PaymentSucceededEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "payment succeeded event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	traceIdAttr := slog.String(constant.LogFieldTraceId, ulid.Make().String())
	reqAttr := slog.Any(constant.LogFieldPayload, string(msg))

	sendEmailReq := model.SendEmailEventMessage{
		To:      req.Email,
		Subject: "Payment Received",
		Body: fmt.Sprintf(constant.EmailPaymentReceivedTemplate,
			req.Name,
			in.formatAmount(req.Amount, req.Currency),
			req.Reference,
			req.Credential,
		),
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendEmail, sendEmailReq)
	if err != nil {
		slog.ErrorContext(ctx, "payment succeeded event publish error", slog.Any(constant.LogFieldErr, err), reqAttr, traceIdAttr)
		return err
	}

	slog.DebugContext(ctx, "payment succeeded event publish success", reqAttr, traceIdAttr)

	return nil
}

func (in NotificationEvent) AttendeeValidatedHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.AttendeeValidatedEventMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "attendee validated event unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	traceIdAttr := slog.String(constant.LogFieldTraceId, ulid.Make().String())
	reqAttr := slog.Any(constant.LogFieldPayload, string(msg))

	sendEmailReq := model.SendEmailEventMessage{
		To:      req.Email,
		Subject: "Entrance Confirmation",
		Body: fmt.Sprintf(constant.EmailAttendeeValidatedTemplate,
			req.Name,
			req.UniqueId,
			req.ValidatedAt,
		),
	}

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendEmail, sendEmailReq)
	if err != nil {
		slog.ErrorContext(ctx, "attendee validated event publish error", slog.Any(constant.LogFieldErr, err), reqAttr, traceIdAttr)
		return err
	}

	slog.DebugContext(ctx, "attendee validated event publish success", reqAttr, traceIdAttr)

	return nil
}

func (in NotificationEvent) formatAmount(amount int64, currency string) string {
	return in.CurrencyFormatter.Sprintf("%s %d", currency, amount)
}
