// Package redis provides the Redis connection component and a typed JSON
// store used by the Redis run store.
//
// Client embeds the go-redis client; Component adds lifecycle and health
// checks. TypedStore keeps one JSON document per key and updates it with
// optimistic WATCH/MULTI transactions:
//
//	store := redis.NewTypedStore[workflow.Run](client, "flowkit:runs")
//	found, err := store.Update(ctx, runID, ttl, func(r *workflow.Run) error {
//	    update.Apply(r)
//	    return nil
//	})
package redis
