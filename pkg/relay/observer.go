package relay

// Observer receives relay events. Implementations must be safe for concurrent
// use; callbacks run on producer, consumer and caller goroutines.
type Observer interface {
	// ItemEnqueued reports the pending depth after an enqueue.
	ItemEnqueued(depth int)
	// ItemEvicted reports one item dropped from the retained window.
	ItemEvicted()
	// WorkerRestarted reports a worker recovering from a panic. worker is
	// "producer" or "consumer".
	WorkerRestarted(worker string)
	// WatermarkExceeded reports an enqueue above the pending watermark.
	WatermarkExceeded(depth int)
	// DrainServed reports a drain answered with count items.
	DrainServed(count int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ItemEnqueued(int)       {}
func (NopObserver) ItemEvicted()           {}
func (NopObserver) WorkerRestarted(string) {}
func (NopObserver) WatermarkExceeded(int)  {}
func (NopObserver) DrainServed(int)        {}
