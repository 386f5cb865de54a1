// Package component defines lifecycle-managed infrastructure for flowkit.
//
// A Component is started once, stopped once and reports its health. The
// Registry starts components in registration order and stops them in
// reverse; the HTTP /health endpoint reports Registry.HealthAll.
package component
