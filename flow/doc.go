// Package flow executes workflow graphs.
//
// The Orchestrator validates a graph, records a Run, and hands the graph
// to the dag engine level by level. For every node the InputResolver
// builds an input bag from the outputs of its upstream edges, and the
// Dispatcher turns the node's typed data plus that bag into an output,
// invoking long-running tasks through the task package.
package flow
