package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldURL        = "url"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldEndpoint   = "endpoint"
	FieldCacheKey   = "cache_key"
	FieldTags       = "tags"
	FieldUserID     = "user_id"
	FieldExpenseID  = "expense_id"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldState      = "state"
	FieldFromState  = "from_state"
	FieldPath       = "path"
	FieldRedirect   = "redirect"
	FieldBackend    = "backend"
	FieldErrorType  = "error_type"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentAPI     = "api"
	ComponentCache   = "cache"
	ComponentSession = "session"
	ComponentStorage = "storage"
	ComponentExpense = "expense"
	ComponentAuth    = "auth"
	ComponentPayment = "payment"
	ComponentVoice   = "voice"
	ComponentRouter  = "router"
	ComponentView    = "view"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpQuery      = "query"
	OpMutate     = "mutate"
	OpInvalidate = "invalidate"
	OpParse      = "parse"
	OpLogin      = "login"
	OpLogout     = "logout"
	OpHydrate    = "hydrate"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeNetwork     = "network_error"
	ErrorTypeServer      = "server_error"
	ErrorTypeAuth        = "auth_error"
	ErrorTypeUnsupported = "unsupported_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithHTTPRequest adds outgoing request fields
func (f LogFields) WithHTTPRequest(method, url string) LogFields {
	f[FieldMethod] = method
	f[FieldURL] = url
	return f
}

// WithHTTPResponse adds response fields; a zero status means no response.
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode > 0 && statusCode < 400
	if t := ErrorTypeForStatus(statusCode); t != "" {
		f[FieldErrorType] = t
	}
	return f
}

// ErrorTypeForStatus categorizes an HTTP outcome, "" for success.
func ErrorTypeForStatus(statusCode int) string {
	switch {
	case statusCode <= 0:
		return ErrorTypeNetwork
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode >= 500:
		return ErrorTypeServer
	case statusCode >= 400:
		return ErrorTypeValidation
	}
	return ""
}

func (f LogFields) WithCache(endpoint, key string) LogFields {
	f[FieldEndpoint] = endpoint
	f[FieldCacheKey] = key
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
