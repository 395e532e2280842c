package logging

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"

	FieldJobID = "job_id"

	FieldBatchID = "batch_id"

	FieldSkin = "skin"

	FieldVoice = "voice"

	FieldLineKey = "line_key"

	FieldTake = "take"

	FieldEventType = "event_type"

	FieldErrorHint = "error_hint"

	FieldProgressPercent = "progress_percent"

	FieldCorrelationID = "correlation_id"
)
