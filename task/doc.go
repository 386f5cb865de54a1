// Package task drives long-running operations through a submit/poll
// protocol.
//
// An [Invoker] submits a [Request] to a [Runner], then polls the returned
// run id on a ticker until the run completes, fails or exhausts its
// attempt ceiling (180 polls for llm tasks, 120 for media tasks by
// default). When the runner cannot accept the submission, the invoker
// runs the operation inline through its [ExecFunc] instead.
//
// Runners:
//   - task/httprunner talks to a remote runner over HTTP
//   - task/localrunner runs tasks asynchronously in-process
package task
