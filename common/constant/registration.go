package constant

// Credential namespaces. A registration and a ticket never share an id space.
const (
	RegistrationIdPrefix = "REG"
	TicketNumberPrefix   = "TKT"
)

// Rejection reasons returned to entrance staff. These are contract values:
// the scanner UI switches on them, so they never change casually.
const (
	ReasonCredentialNotFound  = "credential not found"
	ReasonCredentialMismatch  = "credential mismatch"
	ReasonAlreadyValidated    = "already validated"
	ReasonPaymentPending      = "payment pending"
	ReasonCancelled           = "cancelled"
	ReasonNotConfirmed        = "not confirmed"
	ReasonLikelyMismatch      = "photo likely mismatch"
	ReasonConfirmTokenExpired = "confirmation expired"
)

// Registration rejection reasons.
const (
	ReasonCapacityExceeded     = "capacity exceeded"
	ReasonWindowClosed         = "registration window closed"
	ReasonCategoryNotAllowed   = "category not allowed"
	ReasonPaymentProofRequired = "payment proof required"
)
