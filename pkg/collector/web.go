package collector

import (
	"strconv"

	"mercator-hq/pulse/pkg/instrument"
	"mercator-hq/pulse/pkg/sample"
)

// unknownStatus is reported by producers when the response was handed off
// before its status was known.
const unknownStatus = 418

// Route is a controller/action pair.
type Route struct {
	Controller string `yaml:"controller"`
	Action     string `yaml:"action"`
}

// DefaultRoutes are the heavy endpoints that keep their own timing labels.
var DefaultRoutes = []Route{
	{"list", "latest"},
	{"list", "top"},
	{"topics", "show"},
	{"users", "show"},
	{"categories", "categories_and_latest"},
}

type routeSet map[Route]struct{}

func newRouteSet(routes []Route) routeSet {
	set := make(routeSet, len(routes))
	for _, r := range routes {
		set[r] = struct{}{}
	}
	return set
}

func (s routeSet) allows(controller, action string) bool {
	_, ok := s[Route{controller, action}]
	return ok
}

type webMetrics struct {
	duration    *instrument.Summary
	application *instrument.Summary
	sql         *instrument.Summary
	redis       *instrument.Summary
	net         *instrument.Summary
	gc          *instrument.Summary
	queue       *instrument.Summary

	sqlCalls   *instrument.Gauge
	redisCalls *instrument.Gauge
	netCalls   *instrument.Gauge
	gcMajor    *instrument.Gauge
	gcMinor    *instrument.Gauge

	pageViews *instrument.Counter
	requests  *instrument.Counter
}

func newWebMetrics(name func(string) string) *webMetrics {
	return &webMetrics{
		duration:    instrument.NewSummary(name("http_duration_seconds"), "Time spent in HTTP reqs in seconds"),
		application: instrument.NewSummary(name("http_application_duration_seconds"), "Time spent in application code within HTTP reqs in seconds"),
		sql:         instrument.NewSummary(name("http_sql_duration_seconds"), "Time spent in HTTP reqs in SQL in seconds"),
		redis:       instrument.NewSummary(name("http_redis_duration_seconds"), "Time spent in HTTP reqs in redis seconds"),
		net:         instrument.NewSummary(name("http_net_duration_seconds"), "Time spent in external network requests"),
		gc:          instrument.NewSummary(name("http_gc_duration_seconds"), "Time spent in GC within HTTP reqs in seconds"),
		queue:       instrument.NewSummary(name("http_requests_queue_duration_seconds"), "Time spent queueing requests between the proxy and the app server"),

		sqlCalls:   instrument.NewGauge(name("http_sql_calls_per_request"), "How many SQL statements ran in the last request"),
		redisCalls: instrument.NewGauge(name("http_redis_calls_per_request"), "How many redis commands ran in the last request"),
		netCalls:   instrument.NewGauge(name("http_net_calls_per_request"), "How many external network calls ran in the last request"),
		gcMajor:    instrument.NewGauge(name("http_gc_major_count"), "Major GC runs during the last request"),
		gcMinor:    instrument.NewGauge(name("http_gc_minor_count"), "Minor GC runs during the last request"),

		pageViews: instrument.NewCounter(name("page_views"), "Page views reported by admin dashboard"),
		requests:  instrument.NewCounter(name("http_requests"), "Total HTTP requests from web app"),
	}
}

func (m *webMetrics) all() []instrument.Instrument {
	return []instrument.Instrument{
		m.pageViews, m.requests,
		m.duration, m.application, m.sql, m.redis, m.net, m.gc, m.queue,
		m.sqlCalls, m.redisCalls, m.netCalls, m.gcMajor, m.gcMinor,
	}
}

func (m *webMetrics) observe(w *sample.Web, routes routeSet) {
	timing := timingLabels(w, routes)

	if w.Duration != nil {
		m.duration.Observe(*w.Duration, timing)
		if app, ok := applicationDuration(w); ok {
			m.application.Observe(app, timing)
		}
	}
	observeDuration(m.sql, w.SQLDuration, timing)
	observeDuration(m.redis, w.RedisDuration, timing)
	observeDuration(m.net, w.NetDuration, timing)
	observeDuration(m.gc, w.GCDuration, timing)
	observeDuration(m.queue, w.QueueDuration, nil)

	observeCount(m.sqlCalls, w.SQLCalls, timing)
	observeCount(m.redisCalls, w.RedisCalls, timing)
	observeCount(m.netCalls, w.NetCalls, timing)
	observeCount(m.gcMajor, w.GCMajorCount, timing)
	observeCount(m.gcMinor, w.GCMinorCount, timing)

	db := w.DB
	if db == "" {
		db = "default"
	}
	if w.Tracked {
		m.pageViews.Inc(pageViewLabels(w, db))
	}
	m.requests.Inc(requestLabels(w, db))
}

func timingLabels(w *sample.Web, routes routeSet) instrument.Labels {
	controller, action := "other", "other"
	if routes.allows(w.Controller, w.Action) {
		controller, action = w.Controller, w.Action
	}
	return instrument.Labels{
		"controller":   controller,
		"action":       action,
		"success":      strconv.FormatBool(w.StatusCode >= 200 && w.StatusCode <= 299),
		"logged_in":    strconv.FormatBool(w.LoggedIn),
		"content_type": contentType(w),
	}
}

func contentType(w *sample.Web) string {
	switch {
	case w.JSON:
		return "json"
	case w.HTML:
		return "html"
	default:
		return "other"
	}
}

// applicationDuration is the total minus every reported sub-duration. It is
// only meaningful when at least one sub-duration is present.
func applicationDuration(w *sample.Web) (float64, bool) {
	app := *w.Duration
	present := false
	for _, d := range []*float64{w.SQLDuration, w.RedisDuration, w.NetDuration, w.GCDuration} {
		if d != nil {
			app -= *d
			present = true
		}
	}
	return app, present
}

func pageViewLabels(w *sample.Web, db string) instrument.Labels {
	l := instrument.Labels{"db": db}
	if w.Crawler {
		l["type"] = "crawler"
		l["device"] = "crawler"
		return l
	}
	l["type"] = "anon"
	if w.LoggedIn {
		l["type"] = "logged_in"
	}
	l["device"] = "desktop"
	if w.Mobile {
		l["device"] = "mobile"
	}
	return l
}

func requestLabels(w *sample.Web, db string) instrument.Labels {
	api := "web"
	switch {
	case w.AdminAPI:
		api = "admin"
	case w.UserAPI:
		api = "user"
	}

	verb := w.Verb
	if verb == "" {
		verb = "OTHER"
	}

	l := instrument.Labels{
		"db":   db,
		"api":  api,
		"verb": verb,
		"type": "regular",
	}
	if w.Background {
		l["type"] = "background"
		if w.BackgroundType != "" {
			l["background_type"] = w.BackgroundType
		}
	}

	l["status"] = strconv.Itoa(w.StatusCode)
	if w.StatusCode == unknownStatus {
		l["status"] = "-1"
	}
	return l
}

func observeDuration(s *instrument.Summary, v *float64, labels instrument.Labels) {
	if v != nil {
		s.Observe(*v, labels)
	}
}

func observeCount(g *instrument.Gauge, v *int, labels instrument.Labels) {
	if v != nil {
		g.Observe(float64(*v), labels)
	}
}
