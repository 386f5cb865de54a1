// Package logger provides structured logging for flowkit using zerolog.
//
// Loggers are created once from Config and then narrowed per component,
// per run and per node so every line carries the identifiers needed to
// follow a workflow execution:
//
//	log := logger.New(&cfg.Logging, "flowkit").WithComponent("orchestrator")
//	log.ForRun(runID).ForNode(nodeID, "llm").Info("node started")
package logger
