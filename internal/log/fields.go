package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldHouseID    = "house_id"
	FieldUserID     = "user_id"
	FieldBudgetID   = "budget_id"
	FieldAmount     = "amount"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStore     = "store"
	ComponentAMQP      = "amqp"
	ComponentIdentity  = "identity"
	ComponentHouse     = "house"
	ComponentRecurring = "recurring"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
)
