package collector

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"

	dto "github.com/prometheus/client_model/go"
)

// DefaultProcessMaxAge is how long a process snapshot stays live without a
// newer sample from the same pid.
const DefaultProcessMaxAge = 60 * time.Second

// WorkingMetric is the gauge the scrape endpoint renders ahead of the
// collected families. Custom samples cannot use the name.
const WorkingMetric = "collector_working"

var (
	// ErrUnknownCustomType is returned for a Custom sample whose type is
	// neither "Counter" nor "Gauge".
	ErrUnknownCustomType = errors.New("unknown custom metric type")

	// ErrTypeConflict is returned when a Custom metric name is reused with a
	// different type or collides with a built-in metric.
	ErrTypeConflict = errors.New("custom metric type conflict")

	// ErrInvalidCustom is returned for a Custom sample missing its name, or a
	// gauge missing its value.
	ErrInvalidCustom = errors.New("invalid custom metric")
)

// Observer receives classification outcomes.
type Observer interface {
	SampleAccepted(kind sample.Kind)
	SampleRejected(kind sample.Kind, reason string)
}

type nopObserver struct{}

func (nopObserver) SampleAccepted(sample.Kind)         {}
func (nopObserver) SampleRejected(sample.Kind, string) {}

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every built-in metric name as "<namespace>_<name>".
	// Custom metrics keep their declared names.
	Namespace string

	// ProcessMaxAge defaults to DefaultProcessMaxAge.
	ProcessMaxAge time.Duration

	// Routes is the controller/action allow-list for web timing labels.
	// Nil means DefaultRoutes.
	Routes []Route

	// Now defaults to time.Now. Tests inject a fake clock.
	Now func() time.Time

	Logger   *slog.Logger
	Observer Observer
}

// Collector aggregates samples. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	namespace string
	maxAge    time.Duration
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer

	routes    routeSet
	processes []processEntry
	web       *webMetrics
	jobs      *jobMetrics
	global    *globalMetrics
	custom    *registry
	builtin   map[string]struct{}
}

// New creates a Collector.
func New(opts Options) *Collector {
	c := &Collector{
		namespace: opts.Namespace,
		maxAge:    opts.ProcessMaxAge,
		now:       opts.Now,
		logger:    opts.Logger,
		observer:  opts.Observer,
		custom:    newRegistry(),
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultProcessMaxAge
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "collector")
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if opts.Routes == nil {
		opts.Routes = DefaultRoutes
	}
	c.routes = newRouteSet(opts.Routes)

	c.web = newWebMetrics(c.metricName)
	c.jobs = newJobMetrics(c.metricName)
	c.global = newGlobalMetrics(c.metricName)

	c.builtin = make(map[string]struct{})
	for _, i := range c.fixed() {
		c.builtin[i.Name()] = struct{}{}
	}
	for _, f := range processFields {
		c.builtin[c.metricName(f.name)] = struct{}{}
	}
	c.builtin[c.metricName(WorkingMetric)] = struct{}{}
	return c
}

func (c *Collector) metricName(name string) string {
	if c.namespace == "" {
		return name
	}
	return c.namespace + "_" + name
}

// Process decodes a raw JSON sample and folds it in. A payload that fails to
// decode leaves existing state untouched.
func (c *Collector) Process(raw []byte) error {
	s, err := sample.Decode(raw)
	if err != nil {
		var de *sample.DecodeError
		kind := sample.Kind("")
		if errors.As(err, &de) {
			kind = de.Kind
		}
		c.observer.SampleRejected(kind, "decode")
		return err
	}
	return c.Observe(s)
}

// Observe folds a decoded sample in.
func (c *Collector) Observe(s sample.Sample) error {
	if s == nil {
		return fmt.Errorf("observe: nil sample")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch s := s.(type) {
	case *sample.Process:
		c.observeProcess(s)
	case *sample.Web:
		c.web.observe(s, c.routes)
	case *sample.Job:
		c.jobs.observe(s)
	case *sample.Global:
		c.global.observe(s)
	case *sample.Custom:
		err = c.observeCustom(s)
	default:
		err = fmt.Errorf("%w: %T", sample.ErrUnknownKind, s)
	}

	if err != nil {
		c.observer.SampleRejected(s.Kind(), reason(err))
		return err
	}
	c.observer.SampleAccepted(s.Kind())
	return nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCustomType):
		return "unknown_type"
	case errors.Is(err, ErrTypeConflict):
		return "type_conflict"
	case errors.Is(err, ErrInvalidCustom):
		return "invalid"
	default:
		return "other"
	}
}

// SetRoutes replaces the web route allow-list.
func (c *Collector) SetRoutes(routes []Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = newRouteSet(routes)
}

// ProcessCount returns the number of live process snapshots.
func (c *Collector) ProcessCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.processes)
}

// Render returns the exposition text of every instrument with at least one
// series.
func (c *Collector) Render() (string, error) {
	var buf bytes.Buffer
	if err := c.WriteText(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteText writes the exposition text to w.
func (c *Collector) WriteText(w io.Writer) error {
	c.mu.Lock()
	all := c.instruments()
	// Families snapshot the state, so encoding can happen unlocked.
	families := make([]*dto.MetricFamily, 0, len(all))
	for _, i := range all {
		if i.Len() > 0 {
			families = append(families, i.Family())
		}
	}
	c.mu.Unlock()

	if err := instrument.WriteFamilies(w, families...); err != nil {
		return fmt.Errorf("render metrics: %w", err)
	}
	return nil
}

// Gather implements prometheus.Gatherer.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*dto.MetricFamily
	for _, i := range c.instruments() {
		if i.Len() > 0 {
			out = append(out, i.Family())
		}
	}
	return out, nil
}

// Instrument returns the realized instrument with the given full name, or
// nil.
func (c *Collector) Instrument(name string) instrument.Instrument {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, i := range c.instruments() {
		if i.Name() == name && i.Len() > 0 {
			return i
		}
	}
	return nil
}

// instruments lists everything in render order. Callers hold c.mu.
func (c *Collector) instruments() []instrument.Instrument {
	out := c.processInstruments()
	out = append(out, c.fixed()...)
	return append(out, c.custom.all()...)
}

// fixed lists the web, job and global families.
func (c *Collector) fixed() []instrument.Instrument {
	out := c.web.all()
	out = append(out, c.jobs.all()...)
	return append(out, c.global.all()...)
}
