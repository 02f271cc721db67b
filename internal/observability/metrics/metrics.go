package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// VoteLabel identifies a recorded vote event by the submitted choice and the
// ledger outcome (recorded, removed, switched, rejected).
type VoteLabel struct {
	Choice  string
	Outcome string
}

// Recorder aggregates in-memory counters and gauges for HTTP requests, upload
// and deletion activity, vote ledger mutations, and retention sweeps. A RWMutex
// coordinates concurrent writers while gauges use atomics.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	videoEvents     map[string]uint64
	voteEvents      map[VoteLabel]uint64
	sweepRuns       uint64
	sweepFailures   uint64
	purgedVideos    uint64
	busyRejections  map[string]uint64
	storedVideos    atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers can
// immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		videoEvents:     make(map[string]uint64),
		voteEvents:      make(map[VoteLabel]uint64),
		busyRejections:  make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// VideoUploaded records a completed upload and increments the stored video
// gauge.
func (r *Recorder) VideoUploaded() {
	r.incrementVideoEvent("upload")
	r.storedVideos.Add(1)
}

// VideoDeleted records an explicit deletion and decrements the stored video
// gauge, guarding against negative counts when concurrent updates race.
func (r *Recorder) VideoDeleted() {
	r.incrementVideoEvent("delete")
	r.decrementGauge(&r.storedVideos)
}

// VideoExpired records a retention sweep removal and decrements the stored
// video gauge.
func (r *Recorder) VideoExpired() {
	r.incrementVideoEvent("expire")
	r.decrementGauge(&r.storedVideos)
}

func (r *Recorder) incrementVideoEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.videoEvents[normalized]++
	r.mu.Unlock()
}

// ObserveVote records a vote submission keyed by the submitted choice and the
// resulting ledger outcome.
func (r *Recorder) ObserveVote(choice, outcome string) {
	label := VoteLabel{
		Choice:  normalizeName(choice),
		Outcome: normalizeName(outcome),
	}
	r.mu.Lock()
	r.voteEvents[label]++
	r.mu.Unlock()
}

// ObserveBusyRejection records a request rejected because a resource token
// could not be acquired before the timeout, keyed by operation name.
func (r *Recorder) ObserveBusyRejection(operation string) {
	op := normalizeName(operation)
	r.mu.Lock()
	r.busyRejections[op]++
	r.mu.Unlock()
}

// ObserveSweep records the completion of a retention sweep and the number of
// clips it purged. Failed sweeps are counted separately.
func (r *Recorder) ObserveSweep(purged int, err error) {
	r.mu.Lock()
	r.sweepRuns++
	if err != nil {
		r.sweepFailures++
	}
	if purged > 0 {
		r.purgedVideos += uint64(purged)
	}
	r.mu.Unlock()
}

// StoredVideos exposes the current gauge of videos held in storage.
func (r *Recorder) StoredVideos() int64 {
	return r.storedVideos.Load()
}

// SweepCounts returns the total number of sweep runs, failed runs, and purged
// clips for testing and reporting purposes.
func (r *Recorder) SweepCounts() (runs, failures, purged uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sweepRuns, r.sweepFailures, r.purgedVideos
}

// VoteCounts returns a copy of the vote event counters.
func (r *Recorder) VoteCounts() map[VoteLabel]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make(map[VoteLabel]uint64, len(r.voteEvents))
	for k, v := range r.voteEvents {
		events[k] = v
	}
	return events
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.videoEvents = make(map[string]uint64)
	r.voteEvents = make(map[VoteLabel]uint64)
	r.busyRejections = make(map[string]uint64)
	r.sweepRuns = 0
	r.sweepFailures = 0
	r.purgedVideos = 0
	r.storedVideos.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting label
// sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	videoEvents := r.sortedVideoEvents()
	voteLabels := r.sortedVoteLabels()
	busyOperations := r.sortedBusyOperations()

	fmt.Fprintln(w, "# HELP clipstash_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE clipstash_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "clipstash_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP clipstash_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE clipstash_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "clipstash_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP clipstash_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE clipstash_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "clipstash_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP clipstash_video_events_total Video lifecycle events by type")
	fmt.Fprintln(w, "# TYPE clipstash_video_events_total counter")
	for _, event := range videoEvents {
		value := r.videoEvents[event]
		fmt.Fprintf(w, "clipstash_video_events_total{event=\"%s\"} %d\n", event, value)
	}

	fmt.Fprintln(w, "# HELP clipstash_stored_videos Current number of videos held in storage")
	fmt.Fprintln(w, "# TYPE clipstash_stored_videos gauge")
	fmt.Fprintf(w, "clipstash_stored_videos %d\n", r.storedVideos.Load())

	fmt.Fprintln(w, "# HELP clipstash_votes_total Vote submissions by choice and ledger outcome")
	fmt.Fprintln(w, "# TYPE clipstash_votes_total counter")
	for _, label := range voteLabels {
		count := r.voteEvents[label]
		fmt.Fprintf(w, "clipstash_votes_total{choice=\"%s\",outcome=\"%s\"} %d\n", label.Choice, label.Outcome, count)
	}

	fmt.Fprintln(w, "# HELP clipstash_busy_rejections_total Requests rejected because a resource token timed out, by operation")
	fmt.Fprintln(w, "# TYPE clipstash_busy_rejections_total counter")
	for _, op := range busyOperations {
		count := r.busyRejections[op]
		fmt.Fprintf(w, "clipstash_busy_rejections_total{operation=\"%s\"} %d\n", op, count)
	}

	fmt.Fprintln(w, "# HELP clipstash_sweep_runs_total Total retention sweep executions")
	fmt.Fprintln(w, "# TYPE clipstash_sweep_runs_total counter")
	fmt.Fprintf(w, "clipstash_sweep_runs_total %d\n", r.sweepRuns)

	fmt.Fprintln(w, "# HELP clipstash_sweep_failures_total Retention sweeps that returned an error")
	fmt.Fprintln(w, "# TYPE clipstash_sweep_failures_total counter")
	fmt.Fprintf(w, "clipstash_sweep_failures_total %d\n", r.sweepFailures)

	fmt.Fprintln(w, "# HELP clipstash_purged_videos_total Total clips removed by retention sweeps")
	fmt.Fprintln(w, "# TYPE clipstash_purged_videos_total counter")
	fmt.Fprintf(w, "clipstash_purged_videos_total %d\n", r.purgedVideos)
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedVideoEvents() []string {
	events := make([]string, 0, len(r.videoEvents))
	for event := range r.videoEvents {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

func (r *Recorder) sortedVoteLabels() []VoteLabel {
	labels := make([]VoteLabel, 0, len(r.voteEvents))
	for label := range r.voteEvents {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Choice != labels[j].Choice {
			return labels[i].Choice < labels[j].Choice
		}
		return labels[i].Outcome < labels[j].Outcome
	})
	return labels
}

func (r *Recorder) sortedBusyOperations() []string {
	ops := make([]string, 0, len(r.busyRejections))
	for op := range r.busyRejections {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// VideoUploaded increments counters on the default recorder.
func VideoUploaded() {
	defaultRecorder.VideoUploaded()
}

// VideoDeleted records a deletion on the default recorder.
func VideoDeleted() {
	defaultRecorder.VideoDeleted()
}

// VideoExpired records a retention removal on the default recorder.
func VideoExpired() {
	defaultRecorder.VideoExpired()
}

// ObserveVote records a vote event on the default recorder.
func ObserveVote(choice, outcome string) {
	defaultRecorder.ObserveVote(choice, outcome)
}

// ObserveBusyRejection records a token timeout rejection on the default recorder.
func ObserveBusyRejection(operation string) {
	defaultRecorder.ObserveBusyRejection(operation)
}

// ObserveSweep records a sweep result on the default recorder.
func ObserveSweep(purged int, err error) {
	defaultRecorder.ObserveSweep(purged, err)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
