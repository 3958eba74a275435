// Package reporter produces Process samples describing the running pulse
// process and submits them on a cron schedule.
//
// Resident memory and thread count come from /proc through procfs. Heap and
// GC figures come from the Go runtime and are mapped onto the closest
// Process fields:
//
//   - heap_live_slots: live heap objects
//   - major_gc_count: completed GC cycles
//   - total_allocated_objects: cumulative allocations
//
// heap_free_slots and minor_gc_count have no runtime counterpart and are
// left out.
//
// On systems without /proc the memory and thread readings fall back to
// runtime figures.
package reporter
