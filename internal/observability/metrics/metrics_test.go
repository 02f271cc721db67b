package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderRendersRequestMetrics(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest(http.MethodGet, "/videos", http.StatusOK, 30*time.Millisecond)
	recorder.ObserveRequest(http.MethodGet, "/videos", http.StatusOK, 70*time.Millisecond)
	recorder.ObserveRequest(http.MethodPost, "/upload", http.StatusCreated, 200*time.Millisecond)

	var buf strings.Builder
	recorder.Write(&buf)
	output := buf.String()

	if !strings.Contains(output, `clipstash_http_requests_total{method="GET",path="/videos",status="200"} 2`) {
		t.Fatalf("missing GET counter:\n%s", output)
	}
	if !strings.Contains(output, `clipstash_http_requests_total{method="POST",path="/upload",status="201"} 1`) {
		t.Fatalf("missing POST counter:\n%s", output)
	}
	if !strings.Contains(output, `clipstash_http_request_duration_seconds_count{method="GET",path="/videos",status="200"} 2`) {
		t.Fatalf("missing duration count:\n%s", output)
	}
}

func TestRecorderNormalizesIdentifierSegments(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest(http.MethodGet, "/videos/alice-1761200000000-7-deadbeef.mp4", http.StatusOK, time.Millisecond)
	recorder.ObserveRequest(http.MethodPost, "/update-username", http.StatusOK, time.Millisecond)

	var buf strings.Builder
	recorder.Write(&buf)
	output := buf.String()

	if !strings.Contains(output, `path="/videos/:id"`) {
		t.Fatalf("expected clip id collapsed to :id:\n%s", output)
	}
	if !strings.Contains(output, `path="/update-username"`) {
		t.Fatalf("expected route word kept literal:\n%s", output)
	}
}

func TestStoredVideosGaugeTracksLifecycle(t *testing.T) {
	recorder := New()

	recorder.VideoUploaded()
	recorder.VideoUploaded()
	recorder.VideoDeleted()
	if got := recorder.StoredVideos(); got != 1 {
		t.Fatalf("expected gauge 1, got %d", got)
	}
	recorder.VideoExpired()
	if got := recorder.StoredVideos(); got != 0 {
		t.Fatalf("expected gauge 0, got %d", got)
	}
	// The gauge never goes negative.
	recorder.VideoDeleted()
	if got := recorder.StoredVideos(); got != 0 {
		t.Fatalf("expected gauge floor at 0, got %d", got)
	}
}

func TestVoteAndBusyCounters(t *testing.T) {
	recorder := New()
	recorder.ObserveVote("like", "recorded")
	recorder.ObserveVote("like", "recorded")
	recorder.ObserveVote("like", "removed")
	recorder.ObserveVote("dislike", "switched")
	recorder.ObserveBusyRejection("vote")

	counts := recorder.VoteCounts()
	if counts[VoteLabel{Choice: "like", Outcome: "recorded"}] != 2 {
		t.Fatalf("unexpected vote counts: %+v", counts)
	}

	var buf strings.Builder
	recorder.Write(&buf)
	output := buf.String()
	if !strings.Contains(output, `clipstash_votes_total{choice="dislike",outcome="switched"} 1`) {
		t.Fatalf("missing vote counter:\n%s", output)
	}
	if !strings.Contains(output, `clipstash_busy_rejections_total{operation="vote"} 1`) {
		t.Fatalf("missing busy counter:\n%s", output)
	}
}

func TestObserveSweepTracksRunsAndFailures(t *testing.T) {
	recorder := New()
	recorder.ObserveSweep(3, nil)
	recorder.ObserveSweep(0, errors.New("sweep exploded"))
	recorder.ObserveSweep(2, nil)

	runs, failures, purged := recorder.SweepCounts()
	if runs != 3 || failures != 1 || purged != 5 {
		t.Fatalf("unexpected sweep counts: runs=%d failures=%d purged=%d", runs, failures, purged)
	}
}

func TestHandlerServesTextExposition(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain; version=0.0.4" {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "clipstash_http_requests_total") {
		t.Fatalf("missing metric family in body")
	}
}

func TestResetClearsAllSeries(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest(http.MethodGet, "/videos", http.StatusOK, time.Millisecond)
	recorder.VideoUploaded()
	recorder.ObserveVote("like", "recorded")
	recorder.ObserveSweep(1, nil)

	recorder.Reset()

	if got := recorder.StoredVideos(); got != 0 {
		t.Fatalf("expected gauge reset, got %d", got)
	}
	runs, failures, purged := recorder.SweepCounts()
	if runs != 0 || failures != 0 || purged != 0 {
		t.Fatalf("expected sweep counters reset")
	}
	if len(recorder.VoteCounts()) != 0 {
		t.Fatalf("expected vote counters reset")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                         "/",
		"/":                        "/",
		"/videos":                  "/videos",
		"/videos/":                 "/videos",
		"/video/abc123xyz987/vote": "/video/:id/vote",
	}
	for input, want := range cases {
		if got := normalizePath(input); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", input, got, want)
		}
	}
}
