package model

const (
	RegistrationStatusPending   = "pending"
	RegistrationStatusConfirmed = "confirmed"
	RegistrationStatusAttended  = "attended"
	RegistrationStatusCancelled = "cancelled"
)

const (
	PaymentStatusNotRequired = "not_required"
	PaymentStatusPending     = "pending"
	PaymentStatusPaid        = "paid"
	PaymentStatusFailed      = "failed"
	PaymentStatusRefunded    = "refunded"
)

type CreateRegistrationRequest struct {
	EventId       int64             `json:"event_id" validate:"required"`
	Category      Category          `json:"category" validate:"required"`
	Name          string            `json:"name" validate:"required,max=100"`
	Email         string            `json:"email" validate:"required,email"`
	Phone         string            `json:"phone" validate:"required,max=20"`
	Fields        map[string]string `json:"fields"`
	ReceiptPath   string            `json:"receipt_path,omitempty"`
	FacePhotoPath string            `json:"face_photo_path,omitempty"`
}

type CreateRegistrationResponse struct {
	Id               int64  `json:"id"`
	UniqueId         string `json:"unique_id"`
	QrPayload        string `json:"qr_payload"`
	ManualCode       string `json:"manual_code"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Amount           int64  `json:"amount,omitempty"`
	Currency         string `json:"currency,omitempty"`
}

type RegistrationConfirmedEventMessage struct {
	Id               int64    `json:"id"`
	EventId          int64    `json:"event_id"`
	EventName        string   `json:"event_name"`
	Category         Category `json:"category"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	UniqueId         string   `json:"unique_id"`
	ManualCode       string   `json:"manual_code"`
	PaymentRequired  bool     `json:"payment_required"`
	Amount           int64    `json:"amount,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	PaymentReference string   `json:"payment_reference,omitempty"`
}

type AttachReceiptRequest struct {
	UniqueId    string `json:"unique_id" validate:"required"`
	ReceiptPath string `json:"receipt_path" validate:"required"`
}

type ReviewReceiptRequest struct {
	UniqueId   string `json:"unique_id" validate:"required"`
	ReviewerId string `json:"reviewer_id" validate:"required"`
	Approve    bool   `json:"approve"`
}

type RetryPaymentRequest struct {
	UniqueId string `json:"unique_id" validate:"required"`
}
