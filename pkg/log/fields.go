package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Connection
	FieldConnID   = "conn_id"
	FieldUsername = "username"
	FieldUserID   = "user_id"

	// Room
	FieldRoom      = "room"
	FieldScope     = "scope"
	FieldChannel   = "channel"
	FieldMessageID = "message_id"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
