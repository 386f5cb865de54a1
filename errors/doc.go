// Package errors provides the structured error type used across flowkit.
//
// Every error that can reach a client is an *AppError carrying a
// machine-readable code, an HTTP status and a retryable flag. The workflow
// taxonomy (invalid graph, node execution, task timeout, task submission,
// unsafe URL) lives next to the generic constructors so handlers can map
// any failure to a response with ToResponse.
package errors
