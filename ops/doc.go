// Package ops implements the task kinds: llm generation, image crop and
// video frame extraction.
//
// An Executor is the ExecFunc behind both the in-process task runner and
// the invoker's inline fallback, so a task behaves the same wherever it
// runs.
package ops
