// Package credentials stores per-owner provider API keys and resolves the
// key a task should use.
//
// Keys are sealed with the encryption package before they reach the
// database. A lookup that finds no stored key, or whose store fails, falls
// back to the process-wide default for the provider.
package credentials
