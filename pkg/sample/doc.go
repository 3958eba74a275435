// Package sample defines the measurement records that producers ship to the
// collector.
//
// # Overview
//
// A Sample is one immutable measurement. Five kinds exist:
//
//   - Process: resource usage snapshot of one application process
//   - Web: timings and classification flags of one HTTP request
//   - Job: outcome and duration of one background or scheduled job
//   - Global: cluster-wide health probe results
//   - Custom: an ad-hoc counter or gauge declared by the producer
//
// # Wire Format
//
// Samples travel as JSON objects. The "_type" member carries the kind and is
// mandatory:
//
//	{"_type": "Job", "job_name": "Bob", "scheduled": false, "duration": 1.7, "success": true}
//
// Decode rejects payloads whose "_type" is missing or unknown. Unknown
// attributes are ignored so newer producers can talk to older collectors.
//
// # Readings
//
// Several Process and Global attributes describe more than one time series,
// for example one value per queue. Such attributes are a Reading, which is
// either a plain number or a list of labeled points:
//
//	"sidekiq_jobs_enqueued": [{"labels": {"queue": "default"}, "value": 3}]
package sample
