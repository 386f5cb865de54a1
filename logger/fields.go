package logger

import (
	"strings"
	"time"
)

// Field keys shared by every flowkit component.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldCallerID  = "caller_id"
	FieldRunID     = "run_id"
	FieldNodeID    = "node_id"
	FieldNodeType  = "node_type"
	FieldLevel     = "level_index"
	FieldTaskKind  = "task_kind"
	FieldTaskRunID = "task_run_id"
	FieldAttempt   = "attempt"
	FieldStatus    = "status"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a field map from alternating key-value pairs.
//
//	log.Info("run finished", logger.Fields("status", "completed", "nodes", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}

// MaskSecret keeps the first and last four characters of a credential.
// Short values are fully masked.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
