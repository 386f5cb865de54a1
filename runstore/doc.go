// Package runstore persists workflow runs.
//
// Three backends share the Store contract: MemoryStore for tests and the
// CLI, SQLStore over the workflow_runs table, and RedisStore which keeps
// each run as one JSON document with an owner index.
package runstore
