// Package sse streams run progress to browsers as Server-Sent Events.
//
// A Hub routes broadcast frames to subscribers whose client id matches a
// glob pattern. Run subscribers are registered as "run:<runID>:<conn>", so
// every connection watching a run matches "run:<runID>:*".
//
//	c := sse.NewComponent("/api/execute/:runId/events", log)
//	_ = c.Start(ctx)
//	c.Hub().BroadcastToPattern("run:01J...:*", frame)
package sse
