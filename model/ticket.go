package model

const (
	TicketStatusPending   = "pending"
	TicketStatusPaid      = "paid"
	TicketStatusCancelled = "cancelled"
	TicketStatusUsed      = "used"
)

type PurchaseTicketRequest struct {
	EventId  int64    `json:"event_id" validate:"required"`
	Category Category `json:"category" validate:"required"`
	Name     string   `json:"name" validate:"required,max=100"`
	Email    string   `json:"email" validate:"required,email"`
	Phone    string   `json:"phone" validate:"required,max=20"`
}

type PurchaseTicketResponse struct {
	Id               int64  `json:"id"`
	TicketNumber     string `json:"ticket_number"`
	QrPayload        string `json:"qr_payload"`
	ManualCode       string `json:"manual_code"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

type TransferTicketRequest struct {
	TicketNumber string `json:"ticket_number" validate:"required"`
	ToName       string `json:"to_name" validate:"required,max=100"`
	ToEmail      string `json:"to_email" validate:"required,email"`
	ToPhone      string `json:"to_phone" validate:"required,max=20"`
}

type RefundTicketRequest struct {
	TicketNumber string `json:"ticket_number" validate:"required"`
}

type TransferTicketResponse struct {
	TicketNumber string `json:"ticket_number"`
	ToName       string `json:"to_name"`
	ToEmail      string `json:"to_email"`
	TransferSeq  int32  `json:"transfer_seq"`
}
