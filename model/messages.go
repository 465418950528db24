package model

const (
	PaymentOutcomeSuccess = "success"
	PaymentOutcomeFailure = "failure"
)

// PaymentCallbackRequest is what the gateway delivers. Delivery may be
// duplicated, delayed or out of order; reconciliation is idempotent by
// Reference.
type PaymentCallbackRequest struct {
	Reference string `json:"reference" validate:"required"`
	Outcome   string `json:"outcome" validate:"required,oneof=success failure"`
	Amount    int64  `json:"amount"`
}

type PaymentSucceededEventMessage struct {
	Reference  string `json:"reference"`
	Kind       string `json:"kind"` // registration | ticket
	Credential string `json:"credential"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type SendEmailEventMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
