package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Tracing Fields (Context level)
// Propagated through the call chain via context.
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the bulk forecast job correlation token
	FieldJobID = "job_id"

	// FieldScope is the item set a job runs over (depot name)
	FieldScope = "scope"

	// FieldSKU is the item key currently being forecast
	FieldSKU = "sku"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// ============================================
// Metric Fields (Entry level)
// Used for aggregation and alerting.
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldFailed is the number of failed items in a batch
	FieldFailed = "failed"

	// FieldSize is the response size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
