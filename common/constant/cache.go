package constant

import "time"

const (
	EventCapacityKey          = "event:%d:capacity"
	RegistrationEmailLock     = "event:%d:email_lock:%s"
	ValidationConfirmTokenKey = "validation:confirm:%s"
)

const (
	RegistrationEmailLockDefaultTTL = 1 * time.Minute

	// Fallback when validation.confirm_token_ttl is not configured.
	ValidationConfirmTokenDefaultTTL = 2 * time.Minute
)
