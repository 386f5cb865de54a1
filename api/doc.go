// Package api serves the workflow HTTP endpoints.
//
//	POST   /api/execute                       run a graph (?async=true returns 202 at once)
//	GET    /api/execute/:runId                poll a run the caller owns
//	GET    /api/execute/:runId/events         stream run events (SSE)
//	GET    /api/runs                          list the caller's recent runs
//	POST   /api/tasks/:kind                   submit a task to the local runner
//	GET    /api/tasks/runs/:id                poll a task
//	PUT    /api/settings/credentials/:provider  store the caller's provider key
//	DELETE /api/settings/credentials/:provider  remove it
//
// Every route runs behind bearer authentication; execute and task
// submission are rate limited per client IP.
package api
