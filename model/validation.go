package model

const (
	ValidationMethodQr         = "qr"
	ValidationMethodManualCode = "manual_code"
	ValidationMethodPhoto      = "photo"
)

type ValidationRequest struct {
	Method        string `json:"method" validate:"required,oneof=qr manual_code photo"`
	QrPayload     string `json:"qr_payload,omitempty"`
	ManualCode    string `json:"manual_code,omitempty"`
	UniqueId      string `json:"unique_id,omitempty"`
	LivePhotoPath string `json:"live_photo_path,omitempty"`
	ValidatedBy   string `json:"validated_by" validate:"required"`
}

type ConfirmValidationRequest struct {
	ConfirmToken string `json:"confirm_token" validate:"required"`
	ValidatedBy  string `json:"validated_by" validate:"required"`
}

// ParticipantSummary is what entrance staff see on the scanner screen.
type ParticipantSummary struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	EventId  int64    `json:"event_id"`
	UniqueId string   `json:"unique_id"`
}

type ValidationResult struct {
	Accepted            bool                `json:"accepted"`
	Reason              string              `json:"reason,omitempty"`
	PendingConfirmation bool                `json:"pending_confirmation,omitempty"`
	ConfirmToken        string              `json:"confirm_token,omitempty"`
	SimilarityScore     *float64            `json:"similarity_score,omitempty"`
	Participant         *ParticipantSummary `json:"participant,omitempty"`
}

type AttendeeValidatedEventMessage struct {
	EventId     int64    `json:"event_id"`
	UniqueId    string   `json:"unique_id"`
	Category    Category `json:"category"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	ValidatedBy string   `json:"validated_by"`
	ValidatedAt string   `json:"validated_at"`
	Method      string   `json:"method"`
}
