// Package recorder writes audit records asynchronously.
//
// Record never blocks the ingestion path. Records are queued on a
// buffered channel and written by a single worker; when the buffer is
// full the record is dropped and counted. Close drains the queue.
//
// BodyHasher wraps a request body so the server can hash and count the
// bytes it reads without buffering the body twice.
package recorder
