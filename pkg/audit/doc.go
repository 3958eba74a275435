/*
Package audit records who sent what to /send-metrics.

One Record is written per ingestion request: the producer (token name or
client address), the request ID, how many samples were accepted, the
answered status, the decompressed body size and its SHA-256 digest. Sample
values are not stored; the audit trail is not a metrics store.

# Components

  - storage: Storage backends, SQLite (database/sql) and in-memory
  - recorder: asynchronous Recorder the server hands records to
  - retention: cron-scheduled Pruner enforcing max age and max count

# Usage

	store, err := storage.Open(storage.Config{Driver: "sqlite", Path: "pulse-audit.db"})
	rec := recorder.New(store, recorder.Config{}, logger)
	defer rec.Close()

	srv := server.NewServer(&cfg.Server, server.Options{Audit: rec, ...})

Querying:

	records, err := store.Query(ctx, &audit.Query{Producer: "web", Limit: 50})
*/
package audit
