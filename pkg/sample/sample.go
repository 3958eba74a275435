package sample

// Kind is the discriminator of a Sample.
type Kind string

const (
	KindProcess Kind = "Process"
	KindWeb     Kind = "Web"
	KindJob     Kind = "Job"
	KindGlobal  Kind = "Global"
	KindCustom  Kind = "Custom"
)

// Kinds lists every known kind in render order.
var Kinds = []Kind{KindProcess, KindWeb, KindJob, KindGlobal, KindCustom}

// Sample is implemented by *Process, *Web, *Job, *Global and *Custom.
// The set is closed; code switching over samples should handle all five.
type Sample interface {
	Kind() Kind
	sealed()
}

// Process is a resource usage snapshot of one application process.
type Process struct {
	// Type is the role of the process, e.g. "web" or "sidekiq".
	Type string `json:"type,omitempty"`
	PID  int    `json:"pid"`

	HeapFreeSlots         *Reading `json:"heap_free_slots,omitempty"`
	HeapLiveSlots         *Reading `json:"heap_live_slots,omitempty"`
	V8HeapSize            *Reading `json:"v8_heap_size,omitempty"`
	V8UsedHeapSize        *Reading `json:"v8_used_heap_size,omitempty"`
	V8PhysicalSize        *Reading `json:"v8_physical_size,omitempty"`
	V8HeapCount           *Reading `json:"v8_heap_count,omitempty"`
	RSS                   *Reading `json:"rss,omitempty"`
	ThreadCount           *Reading `json:"thread_count,omitempty"`
	DeferredJobsQueued    *Reading `json:"deferred_jobs_queued,omitempty"`
	ActiveRecordConns     *Reading `json:"active_record_connections_count,omitempty"`
	Readonly              *Reading `json:"readonly,omitempty"`
	LastReadonlySeconds   *Reading `json:"last_readonly_seconds,omitempty"`
	MajorGCCount          *Reading `json:"major_gc_count,omitempty"`
	MinorGCCount          *Reading `json:"minor_gc_count,omitempty"`
	TotalAllocatedObjects *Reading `json:"total_allocated_objects,omitempty"`
	JobFailures           *Reading `json:"job_failures,omitempty"`
}

// Web describes one HTTP request served by the application.
//
// Durations are seconds. Optional numbers are pointers so an absent timing
// is distinguishable from a zero one.
type Web struct {
	Controller string `json:"controller,omitempty"`
	Action     string `json:"action,omitempty"`
	StatusCode int    `json:"status_code"`
	Verb       string `json:"verb,omitempty"`
	Host       string `json:"host,omitempty"`
	DB         string `json:"db,omitempty"`

	Duration      *float64 `json:"duration,omitempty"`
	SQLDuration   *float64 `json:"sql_duration,omitempty"`
	RedisDuration *float64 `json:"redis_duration,omitempty"`
	NetDuration   *float64 `json:"net_duration,omitempty"`
	GCDuration    *float64 `json:"gc_duration,omitempty"`
	QueueDuration *float64 `json:"queue_duration,omitempty"`

	SQLCalls     *int `json:"sql_calls,omitempty"`
	RedisCalls   *int `json:"redis_calls,omitempty"`
	NetCalls     *int `json:"net_calls,omitempty"`
	GCMajorCount *int `json:"gc_major_count,omitempty"`
	GCMinorCount *int `json:"gc_minor_count,omitempty"`

	JSON           bool   `json:"json,omitempty"`
	HTML           bool   `json:"html,omitempty"`
	Ajax           bool   `json:"ajax,omitempty"`
	Background     bool   `json:"background,omitempty"`
	BackgroundType string `json:"background_type,omitempty"`
	LoggedIn       bool   `json:"logged_in,omitempty"`
	Crawler        bool   `json:"crawler,omitempty"`
	Mobile         bool   `json:"mobile,omitempty"`
	Tracked        bool   `json:"tracked,omitempty"`
	AdminAPI       bool   `json:"admin_api,omitempty"`
	UserAPI        bool   `json:"user_api,omitempty"`
}

// Job is the outcome of one job run. Scheduled separates cron-style jobs
// from ordinary queued ones.
type Job struct {
	JobName   string  `json:"job_name"`
	Scheduled bool    `json:"scheduled"`
	Duration  float64 `json:"duration"`
	// Count defaults to 1 when absent. Producers send 0 to initialize a
	// series before any job has run.
	Count   *float64 `json:"count,omitempty"`
	Success bool     `json:"success"`
}

// Global carries cluster-wide probe results computed by a periodic reporter.
type Global struct {
	PostgresReadonlyMode       *Reading `json:"postgres_readonly_mode,omitempty"`
	TransientReadonlyMode      *Reading `json:"transient_readonly_mode,omitempty"`
	RedisMasterAvailable       *Reading `json:"redis_master_available,omitempty"`
	RedisSlaveAvailable        *Reading `json:"redis_slave_available,omitempty"`
	RedisPrimaryAvailable      *Reading `json:"redis_primary_available,omitempty"`
	RedisReplicaAvailable      *Reading `json:"redis_replica_available,omitempty"`
	PostgresMasterAvailable    *Reading `json:"postgres_master_available,omitempty"`
	PostgresPrimaryAvailable   *Reading `json:"postgres_primary_available,omitempty"`
	PostgresReplicaAvailable   *Reading `json:"postgres_replica_available,omitempty"`
	ActiveAppReqs              *Reading `json:"active_app_reqs,omitempty"`
	QueuedAppReqs              *Reading `json:"queued_app_reqs,omitempty"`
	SidekiqJobsEnqueued        *Reading `json:"sidekiq_jobs_enqueued,omitempty"`
	SidekiqProcesses           *Reading `json:"sidekiq_processes,omitempty"`
	SidekiqPaused              *Reading `json:"sidekiq_paused,omitempty"`
	SidekiqWorkers             *Reading `json:"sidekiq_workers,omitempty"`
	SidekiqJobsStuck           *Reading `json:"sidekiq_jobs_stuck,omitempty"`
	ScheduledJobsStuck         *Reading `json:"scheduled_jobs_stuck,omitempty"`
	SidekiqQueueLatencySeconds *Reading `json:"sidekiq_queue_latency_seconds,omitempty"`
	MissingS3Uploads           *Reading `json:"missing_s3_uploads,omitempty"`
	VersionInfo                *Reading `json:"version_info,omitempty"`
	ReadonlySites              *Reading `json:"readonly_sites,omitempty"`
	PostgresHighestSequence    *Reading `json:"postgres_highest_sequence,omitempty"`
	TmpDirAvailableBytes       *Reading `json:"tmp_dir_available_bytes,omitempty"`
}

// Custom declares an ad-hoc metric. Type is "Counter" or "Gauge".
type Custom struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Labels      map[string]any `json:"labels,omitempty"`
	// Value defaults to 1 for counters when absent.
	Value *float64 `json:"value,omitempty"`
	Type  string   `json:"type"`
}

func (*Process) Kind() Kind { return KindProcess }
func (*Web) Kind() Kind     { return KindWeb }
func (*Job) Kind() Kind     { return KindJob }
func (*Global) Kind() Kind  { return KindGlobal }
func (*Custom) Kind() Kind  { return KindCustom }

func (*Process) sealed() {}
func (*Web) sealed()     {}
func (*Job) sealed()     {}
func (*Global) sealed()  {}
func (*Custom) sealed()  {}

// Float returns a pointer to v, for optional sample fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional sample fields.
func Int(v int) *int { return &v }
