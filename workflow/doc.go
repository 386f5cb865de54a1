// Package workflow defines the workflow data model: typed nodes, edges,
// graphs, node results and runs, plus their JSON wire shapes and a loader
// for workflow files.
//
// Node payloads are a closed set of types selected by Node.Type; code that
// consumes them switches on the concrete NodeData type rather than probing
// attribute maps.
package workflow
