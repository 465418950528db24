package constant

const (
	QueueStreamName = "gatepass_queue_stream"
)

const (
	AllWildcard          = "events.>"
	PaymentWildcard      = "events.payment.>"
	NotificationWildcard = "events.notification.>"
	EmailWildcard        = "events.email.>"

	SubjectPaymentCallback       = "events.payment.callback"
	SubjectPaymentSucceeded      = "events.notification.payment_succeeded"
	SubjectRegistrationConfirmed = "events.notification.registration_confirmed"
	SubjectAttendeeValidated     = "events.notification.attendee_validated"
	SubjectSendEmail             = "events.email.send"
)
