// Package relay moves items from many producers to a single consumer and
// hands back the most recent ones on demand.
//
// # Framed Channel
//
// Channel frames opaque payloads over an OS pipe. Each frame is terminated by
// a fixed three byte delimiter. A payload containing the delimiter has every
// occurrence replaced by a sixteen byte substitute generated at process start;
// the reader reverses the substitution. A payload that happens to contain the
// substitute itself decodes corrupted. This is not detected.
//
// # Relay
//
// Relay is a bounded, drop-oldest buffer between producers and one consumer:
//
//	r, err := relay.New[string](3, relay.Options[string]{})
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	for _, s := range []string{"a", "b", "c", "d"} {
//		_ = r.Enqueue(s)
//	}
//	r.Flush()
//
//	items, err := relay.Collect(r.Drain(ctx)) // [b c d]
//
// Enqueue never blocks on the consumer. Items are queued in memory, written
// to the supply side of a Channel by a lazily started producer goroutine and
// read back by a dedicated consumer goroutine that applies the optional
// Transform and appends the result to the retained window. When the window
// grows past maxRetained the oldest item is evicted.
//
// Drain writes a drain request to the supply side and reads the reply. The
// consumer swaps the window for an empty one, passes the batch through the
// optional Report, and writes the count followed by each item.
//
// # Failure handling
//
// Both workers recover from panics, log them and restart immediately. An item
// being processed during a crash is lost. A panicking Report yields an empty
// batch so the pending drain still gets an answer.
//
// Drains are serialized. Each carries a sequence number so a reply that
// arrives after its caller gave up is skipped by the next drain. Drain
// honours the context deadline and returns ErrClosed when the relay is shut
// down underneath it.
package relay
