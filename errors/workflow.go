package errors

import "fmt"

// InvalidGraph rejects a workflow graph before a run is created.
func InvalidGraph(reason string) *AppError {
	return newCode(ErrCodeInvalidGraph, reason)
}

// NodeExecution wraps a failure raised by one node's handler.
// The message is the cause's text so it can be shown on the node as-is.
func NodeExecution(nodeID string, cause error) *AppError {
	msg := "node execution failed"
	if cause != nil {
		if app, ok := AsAppError(cause); ok {
			msg = app.Message
		} else {
			msg = cause.Error()
		}
	}
	return newCode(ErrCodeNodeExecution, msg).
		WithDetail("node_id", nodeID).
		WithCause(cause)
}

// TaskTimeout reports a poll loop that never observed a terminal state.
func TaskTimeout(kind string, attempts int) *AppError {
	return newCode(ErrCodeTaskTimeout, "Task timed out").
		WithDetails(map[string]any{"kind": kind, "attempts": attempts})
}

// TaskSubmission reports that the external task runner could not be reached.
func TaskSubmission(kind string, cause error) *AppError {
	return newCode(ErrCodeTaskSubmission, fmt.Sprintf("unable to submit %s task to the task runner", kind)).
		WithDetail("kind", kind).
		WithCause(cause)
}

// UnsafeURL rejects an outbound URL before anything is fetched.
func UnsafeURL(url, reason string) *AppError {
	return newCode(ErrCodeUnsafeURL, fmt.Sprintf("URL rejected: %s", reason)).
		WithDetails(map[string]any{"url": url, "reason": reason})
}
