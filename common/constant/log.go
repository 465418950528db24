package constant

const (
	LogFieldErr      = "err"
	LogFieldTraceId  = "trace_id"
	LogFieldPayload  = "payload"
	LogFieldResponse = "response"
)
