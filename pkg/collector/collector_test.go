package collector

import (
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCollector(t *testing.T) (*Collector, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return New(Options{Now: clock.Now}), clock
}

func mustProcess(t *testing.T, c *Collector, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		if err := c.Process([]byte(p)); err != nil {
			t.Fatalf("Process(%s) error = %v", p, err)
		}
	}
}

func mustObserve(t *testing.T, c *Collector, samples ...sample.Sample) {
	t.Helper()
	for _, s := range samples {
		if err := c.Observe(s); err != nil {
			t.Fatalf("Observe(%T) error = %v", s, err)
		}
	}
}

// TestCollector_Custom tests lazily created custom counters and gauges.
func TestCollector_Custom(t *testing.T) {
	c, _ := newTestCollector(t)

	mustProcess(t, c,
		`{"_type":"Custom","name":"counter","description":"some description","value":2,"type":"Counter"}`,
		`{"_type":"Custom","name":"counter","description":"some description","type":"Counter"}`,
		`{"_type":"Custom","name":"gauge","labels":{"test":"super"},"description":"some description","value":122.1,"type":"Gauge"}`,
	)

	expected := `
# HELP counter some description
# TYPE counter counter
counter 3
# HELP gauge some description
# TYPE gauge gauge
gauge{test="super"} 122.1
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected), "counter", "gauge"); err != nil {
		t.Error(err)
	}
}

// TestCollector_CustomErrors tests rejected custom samples.
func TestCollector_CustomErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{
			name:    "unknown type",
			payload: `{"_type":"Custom","name":"hist","type":"Histogram","value":1}`,
			wantErr: ErrUnknownCustomType,
		},
		{
			name:    "type conflict",
			payload: `{"_type":"Custom","name":"jobs","type":"Gauge","value":1}`,
			wantErr: ErrTypeConflict,
		},
		{
			name:    "built-in name",
			payload: `{"_type":"Custom","name":"page_views","type":"Counter"}`,
			wantErr: ErrTypeConflict,
		},
		{
			name:    "scrape gauge name",
			payload: `{"_type":"Custom","name":"collector_working","type":"Gauge","value":1}`,
			wantErr: ErrTypeConflict,
		},
		{
			name:    "missing name",
			payload: `{"_type":"Custom","type":"Counter"}`,
			wantErr: ErrInvalidCustom,
		},
		{
			name:    "gauge without value",
			payload: `{"_type":"Custom","name":"temp","type":"Gauge"}`,
			wantErr: ErrInvalidCustom,
		},
		{
			name:    "invalid name",
			payload: `{"_type":"Custom","name":"disk usage","type":"Gauge","value":1}`,
			wantErr: ErrInvalidCustom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCollector(t)
			mustProcess(t, c, `{"_type":"Custom","name":"jobs","type":"Counter","value":4}`)

			err := c.Process([]byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			jobs := c.Instrument("jobs").(*instrument.Counter)
			if got := jobs.Value(nil); got != 4 {
				t.Errorf("expected existing counter to stay at 4, got %v", got)
			}
		})
	}
}

// TestCollector_DecodeErrorLeavesState tests that malformed samples are
// rejected without side effects.
func TestCollector_DecodeErrorLeavesState(t *testing.T) {
	c, _ := newTestCollector(t)
	mustProcess(t, c, `{"_type":"Job","job_name":"Bob","duration":1,"success":true}`)
	before, err := c.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, bad := range []string{`{"job_name":"Bob"}`, `{"_type":"Nope"}`, `not json`} {
		if err := c.Process([]byte(bad)); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}

	after, err := c.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if before != after {
		t.Errorf("render changed after rejected samples:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

// TestCollector_SidekiqJobs tests ordinary job families.
func TestCollector_SidekiqJobs(t *testing.T) {
	c, _ := newTestCollector(t)

	mustObserve(t, c,
		&sample.Job{JobName: "Bob", Duration: 1.75, Count: sample.Float(1), Success: true},
		&sample.Job{JobName: "Bob", Duration: 0.5, Success: false},
		&sample.Job{JobName: "Bob", Duration: 1.5, Success: false},
	)

	expected := `
# HELP sidekiq_job_duration_seconds Total time spent in sidekiq jobs
# TYPE sidekiq_job_duration_seconds counter
sidekiq_job_duration_seconds{job_name="Bob",success="false"} 2
sidekiq_job_duration_seconds{job_name="Bob",success="true"} 1.75
# HELP sidekiq_job_count Total number of sidekiq jobs executed
# TYPE sidekiq_job_count counter
sidekiq_job_count{job_name="Bob",success="false"} 2
sidekiq_job_count{job_name="Bob",success="true"} 1
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected),
		"sidekiq_job_duration_seconds", "sidekiq_job_count"); err != nil {
		t.Error(err)
	}
	if c.Instrument("scheduled_job_count") != nil {
		t.Error("expected no scheduled job series")
	}
}

// TestCollector_ScheduledJobInitialization tests that a zero count sample
// creates series at zero.
func TestCollector_ScheduledJobInitialization(t *testing.T) {
	c, _ := newTestCollector(t)

	mustObserve(t, c, &sample.Job{JobName: "Bob", Scheduled: true, Count: sample.Float(0), Success: true})

	expected := `
# HELP scheduled_job_count Total number of scheduled jobs executed
# TYPE scheduled_job_count counter
scheduled_job_count{job_name="Bob",success="true"} 0
# HELP scheduled_job_duration_seconds Total time spent in scheduled jobs
# TYPE scheduled_job_duration_seconds counter
scheduled_job_duration_seconds{job_name="Bob",success="true"} 0
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected),
		"scheduled_job_count", "scheduled_job_duration_seconds"); err != nil {
		t.Error(err)
	}
}

// TestCollector_ProcessExpiry tests that stale process snapshots are dropped.
func TestCollector_ProcessExpiry(t *testing.T) {
	c, clock := newTestCollector(t)

	mustObserve(t, c, &sample.Process{Type: "web", PID: 100, RSS: sample.Scalar(100)})
	clock.Advance(61 * time.Second)
	mustObserve(t, c, &sample.Process{Type: "web", PID: 200, RSS: sample.Scalar(20)})

	if got := c.ProcessCount(); got != 1 {
		t.Fatalf("expected 1 live process, got %d", got)
	}

	expected := `
# HELP rss Total RSS used by process
# TYPE rss gauge
rss{pid="200",type="web"} 20
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected), "rss"); err != nil {
		t.Error(err)
	}
}

// TestCollector_ProcessReplace tests that a newer sample for the same pid
// replaces the old one.
func TestCollector_ProcessReplace(t *testing.T) {
	c, clock := newTestCollector(t)

	mustObserve(t, c, &sample.Process{Type: "web", PID: 100, RSS: sample.Scalar(100)})
	clock.Advance(30 * time.Second)
	mustObserve(t, c, &sample.Process{Type: "web", PID: 100, RSS: sample.Scalar(150)})
	mustObserve(t, c, &sample.Process{Type: "sidekiq", PID: 101, RSS: sample.Scalar(50)})

	if got := c.ProcessCount(); got != 2 {
		t.Fatalf("expected 2 live processes, got %d", got)
	}

	expected := `
# HELP rss Total RSS used by process
# TYPE rss gauge
rss{pid="100",type="web"} 150
rss{pid="101",type="sidekiq"} 50
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected), "rss"); err != nil {
		t.Error(err)
	}
}

// TestCollector_ProcessSeries tests labeled process readings and counters.
func TestCollector_ProcessSeries(t *testing.T) {
	c, _ := newTestCollector(t)

	mustProcess(t, c, `{
		"_type": "Process",
		"type": "web",
		"pid": 7,
		"major_gc_count": 12,
		"active_record_connections_count": [
			{"labels": {"status": "busy"}, "value": 3},
			{"labels": {"status": "idle"}, "value": 1},
			{"labels": {"status": "dead"}, "value": null}
		],
		"job_failures": [{"labels": {"family": "scheduled", "job": "Reindex"}, "value": 2}]
	}`)

	expected := `
# HELP active_record_connections_count Total number of connections in the database connection pools
# TYPE active_record_connections_count gauge
active_record_connections_count{pid="7",status="busy",type="web"} 3
active_record_connections_count{pid="7",status="idle",type="web"} 1
# HELP major_gc_count Major GC operations by process
# TYPE major_gc_count counter
major_gc_count{pid="7",type="web"} 12
# HELP job_failures Job failures by family and job class
# TYPE job_failures counter
job_failures{family="scheduled",job="Reindex",pid="7",type="web"} 2
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected),
		"active_record_connections_count", "major_gc_count", "job_failures"); err != nil {
		t.Error(err)
	}
	if c.Instrument("heap_free_slots") != nil {
		t.Error("expected absent readings to produce no series")
	}
}

// TestCollector_WebCounts tests page view and request classification.
func TestCollector_WebCounts(t *testing.T) {
	c, _ := newTestCollector(t)

	mustObserve(t, c,
		&sample.Web{Tracked: true, Verb: "GET", StatusCode: 200, DB: "bob"},
		&sample.Web{Tracked: true, Verb: "GET", StatusCode: 200, DB: "bob"},
		&sample.Web{Tracked: true, Verb: "GET", LoggedIn: true, StatusCode: 200, DB: "bill"},
		&sample.Web{Tracked: true, Verb: "GET", Mobile: true, StatusCode: 200, DB: "jake"},
		&sample.Web{Tracked: true, Crawler: true, StatusCode: 200},
		&sample.Web{Verb: "GET", StatusCode: 200, DB: "bob", UserAPI: true},
		&sample.Web{Verb: "GET", StatusCode: 300, DB: "bob", AdminAPI: true},
		&sample.Web{Verb: "GET", Background: true, StatusCode: 418, DB: "bob"},
		&sample.Web{Verb: "GET", Background: true, BackgroundType: "message-bus", StatusCode: 200, DB: "bob"},
	)

	expected := `
# HELP page_views Page views reported by admin dashboard
# TYPE page_views counter
page_views{db="bob",device="desktop",type="anon"} 2
page_views{db="bill",device="desktop",type="logged_in"} 1
page_views{db="jake",device="mobile",type="anon"} 1
page_views{db="default",device="crawler",type="crawler"} 1
# HELP http_requests Total HTTP requests from web app
# TYPE http_requests counter
http_requests{api="web",db="bob",status="200",type="regular",verb="GET"} 2
http_requests{api="web",db="bill",status="200",type="regular",verb="GET"} 1
http_requests{api="web",db="jake",status="200",type="regular",verb="GET"} 1
http_requests{api="web",db="default",status="200",type="regular",verb="OTHER"} 1
http_requests{api="user",db="bob",status="200",type="regular",verb="GET"} 1
http_requests{api="admin",db="bob",status="300",type="regular",verb="GET"} 1
http_requests{api="web",db="bob",status="-1",type="background",verb="GET"} 1
http_requests{api="web",background_type="message-bus",db="bob",status="200",type="background",verb="GET"} 1
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected), "page_views", "http_requests"); err != nil {
		t.Error(err)
	}
}

// TestCollector_WebStatusLabels tests the derived status and type labels.
func TestCollector_WebStatusLabels(t *testing.T) {
	tests := []struct {
		name       string
		web        *sample.Web
		wantStatus string
		wantType   string
	}{
		{
			name:       "unknown status in background",
			web:        &sample.Web{StatusCode: 418, Background: true},
			wantStatus: "-1",
			wantType:   "background",
		},
		{
			name:       "regular success",
			web:        &sample.Web{StatusCode: 200},
			wantStatus: "200",
			wantType:   "regular",
		},
		{
			name:       "server error",
			web:        &sample.Web{StatusCode: 503},
			wantStatus: "503",
			wantType:   "regular",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCollector(t)
			mustObserve(t, c, tt.web)

			labels := instrument.Labels{
				"db":     "default",
				"api":    "web",
				"verb":   "OTHER",
				"type":   tt.wantType,
				"status": tt.wantStatus,
			}
			requests := c.Instrument("http_requests").(*instrument.Counter)
			if got := requests.Value(labels); got != 1 {
				t.Errorf("expected one request under %v, got %v\n%s", labels, got, instrument.Text(requests))
			}
		})
	}
}

// TestCollector_WebTimings tests timing summaries and per-request gauges.
func TestCollector_WebTimings(t *testing.T) {
	c, _ := newTestCollector(t)

	timed := func(status int, json, html, loggedIn bool) *sample.Web {
		return &sample.Web{
			StatusCode:    status,
			Duration:      sample.Float(14),
			SQLDuration:   sample.Float(1),
			RedisDuration: sample.Float(2),
			NetDuration:   sample.Float(3),
			GCDuration:    sample.Float(4),
			GCMajorCount:  sample.Int(5),
			GCMinorCount:  sample.Int(6),
			QueueDuration: sample.Float(7),
			JSON:          json,
			HTML:          html,
			Controller:    "list",
			Action:        "latest",
			LoggedIn:      loggedIn,
		}
	}
	mustObserve(t, c, timed(200, true, false, true), timed(302, false, true, false))

	jsonLabels := instrument.Labels{
		"controller": "list", "action": "latest", "success": "true",
		"logged_in": "true", "content_type": "json",
	}
	htmlLabels := instrument.Labels{
		"controller": "list", "action": "latest", "success": "false",
		"logged_in": "false", "content_type": "html",
	}

	summaries := []struct {
		name string
		sum  float64
	}{
		{"http_duration_seconds", 14},
		{"http_application_duration_seconds", 4},
		{"http_sql_duration_seconds", 1},
		{"http_redis_duration_seconds", 2},
		{"http_net_duration_seconds", 3},
		{"http_gc_duration_seconds", 4},
	}
	for _, tt := range summaries {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := c.Instrument(tt.name).(*instrument.Summary)
			if !ok {
				t.Fatalf("expected summary %s", tt.name)
			}
			if s.Len() != 2 {
				t.Fatalf("expected 2 label sets, got %d", s.Len())
			}
			for _, labels := range []instrument.Labels{jsonLabels, htmlLabels} {
				e := s.Estimator(labels)
				if e == nil {
					t.Fatalf("missing series %v", labels)
				}
				if e.Count() != 1 || e.Sum() != tt.sum {
					t.Errorf("expected count 1 sum %v, got %d %v", tt.sum, e.Count(), e.Sum())
				}
			}
		})
	}

	queue := c.Instrument("http_requests_queue_duration_seconds").(*instrument.Summary)
	if e := queue.Estimator(nil); e == nil || e.Count() != 2 || e.Sum() != 14 {
		t.Errorf("unexpected queue summary %+v", e)
	}

	major := c.Instrument("http_gc_major_count").(*instrument.Gauge)
	if v, _ := major.Value(htmlLabels); v != 5 {
		t.Errorf("expected gc major count 5, got %v", v)
	}
	minor := c.Instrument("http_gc_minor_count").(*instrument.Gauge)
	if v, _ := minor.Value(jsonLabels); v != 6 {
		t.Errorf("expected gc minor count 6, got %v", v)
	}
}

// TestCollector_WebApplicationDurationNeedsSubDurations tests that the
// application summary is only fed when a sub-duration was reported.
func TestCollector_WebApplicationDurationNeedsSubDurations(t *testing.T) {
	c, _ := newTestCollector(t)
	mustObserve(t, c, &sample.Web{StatusCode: 200, Duration: sample.Float(0.3)})

	if c.Instrument("http_duration_seconds") == nil {
		t.Fatal("expected duration summary")
	}
	if c.Instrument("http_application_duration_seconds") != nil {
		t.Error("expected no application duration without sub-durations")
	}
}

// TestCollector_Routes tests the route allow-list.
func TestCollector_Routes(t *testing.T) {
	c, _ := newTestCollector(t)
	mustObserve(t, c,
		&sample.Web{Controller: "topics", Action: "show", StatusCode: 200, Duration: sample.Float(1)},
		&sample.Web{Controller: "admin", Action: "index", StatusCode: 200, Duration: sample.Float(1)},
	)

	d := c.Instrument("http_duration_seconds").(*instrument.Summary)
	base := instrument.Labels{"success": "true", "logged_in": "false", "content_type": "other"}
	if d.Estimator(base.With(instrument.Labels{"controller": "topics", "action": "show"})) == nil {
		t.Error("expected allow-listed route labels")
	}
	if d.Estimator(base.With(instrument.Labels{"controller": "other", "action": "other"})) == nil {
		t.Error("expected other/other bucket")
	}

	c.SetRoutes([]Route{{Controller: "admin", Action: "index"}})
	mustObserve(t, c, &sample.Web{Controller: "admin", Action: "index", StatusCode: 200, Duration: sample.Float(1)})
	if d.Estimator(base.With(instrument.Labels{"controller": "admin", "action": "index"})) == nil {
		t.Error("expected updated allow-list to apply")
	}
}

// TestCollector_GlobalReset tests that stale global series vanish each cycle.
func TestCollector_GlobalReset(t *testing.T) {
	c, _ := newTestCollector(t)

	mustProcess(t, c, `{
		"_type": "Global",
		"sidekiq_processes": 2,
		"sidekiq_jobs_enqueued": [
			{"labels": {"queue": "default"}, "value": 5},
			{"labels": {"queue": "low"}, "value": 1}
		]
	}`)
	mustProcess(t, c, `{
		"_type": "Global",
		"sidekiq_jobs_enqueued": [{"labels": {"queue": "low"}, "value": 3}],
		"sidekiq_paused": [{"labels": {"db": "default"}, "value": null}]
	}`)

	expected := `
# HELP sidekiq_jobs_enqueued Number of jobs queued in the Sidekiq worker processes
# TYPE sidekiq_jobs_enqueued gauge
sidekiq_jobs_enqueued{queue="low"} 3
`
	if err := testutil.GatherAndCompare(c, strings.NewReader(expected),
		"sidekiq_jobs_enqueued", "sidekiq_processes", "sidekiq_paused"); err != nil {
		t.Error(err)
	}
}

// TestCollector_RenderOrder tests grouping and namespacing of the output.
func TestCollector_RenderOrder(t *testing.T) {
	c := New(Options{Namespace: "pulse"})

	mustObserve(t, c,
		&sample.Custom{Name: "deploys", Type: "Counter"},
		&sample.Global{SidekiqProcesses: sample.Scalar(1)},
		&sample.Job{JobName: "Bob", Duration: 1, Success: true},
		&sample.Web{StatusCode: 200},
		&sample.Process{PID: 1, RSS: sample.Scalar(10)},
	)

	text, err := c.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	order := []string{
		"# TYPE pulse_rss gauge",
		"# TYPE pulse_http_requests counter",
		"# TYPE pulse_sidekiq_job_duration_seconds counter",
		"# TYPE pulse_sidekiq_processes gauge",
		"# TYPE deploys counter",
	}
	last := -1
	for _, marker := range order {
		i := strings.Index(text, marker)
		if i < 0 {
			t.Fatalf("missing %q in:\n%s", marker, text)
		}
		if i < last {
			t.Errorf("%q rendered out of order", marker)
		}
		last = i
	}

	if !strings.Contains(text, "\n\n# HELP") {
		t.Error("expected blank lines between instruments")
	}
	if strings.Contains(text, "\n\n\n") {
		t.Error("unexpected double blank line")
	}
}

// TestCollector_Empty tests rendering before any sample arrives.
func TestCollector_Empty(t *testing.T) {
	c, _ := newTestCollector(t)

	text, err := c.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if text != "" {
		t.Errorf("expected empty render, got %q", text)
	}
	if n, err := testutil.GatherAndCount(c); err != nil || n != 0 {
		t.Errorf("expected 0 series, got %d (%v)", n, err)
	}
}

type recordingObserver struct {
	accepted map[sample.Kind]int
	rejected map[string]int
}

func (o *recordingObserver) SampleAccepted(k sample.Kind) { o.accepted[k]++ }

func (o *recordingObserver) SampleRejected(_ sample.Kind, reason string) { o.rejected[reason]++ }

// TestCollector_Observer tests classification outcome reporting.
func TestCollector_Observer(t *testing.T) {
	obs := &recordingObserver{accepted: map[sample.Kind]int{}, rejected: map[string]int{}}
	c := New(Options{Observer: obs})

	_ = c.Process([]byte(`{"_type":"Web","status_code":200}`))
	_ = c.Process([]byte(`{"_type":"Custom","name":"x","type":"Summary"}`))
	_ = c.Process([]byte(`{}`))

	if obs.accepted[sample.KindWeb] != 1 {
		t.Errorf("expected 1 accepted web sample, got %d", obs.accepted[sample.KindWeb])
	}
	if obs.rejected["unknown_type"] != 1 || obs.rejected["decode"] != 1 {
		t.Errorf("unexpected rejections %v", obs.rejected)
	}
}
