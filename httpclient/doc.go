// Package httpclient is the outbound HTTP client shared by the task runner
// client, the media provider and image fetching for LLM calls.
//
// It applies default headers and auth, classifies failures into typed
// errors, retries retryable failures, and can run every absolute URL
// through a guard before dialing.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://tasks.internal:8090",
//	    Auth:    httpclient.BearerAuth(token),
//	    Retry:   httpclient.DefaultRetryConfig(),
//	})
//	run, err := httpclient.PostJSON[SubmitResponse](client, ctx, "/api/tasks/llm", payload)
package httpclient
