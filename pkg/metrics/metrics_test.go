package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	reg := New()
	c := reg.Counter("ingest_documents_total", "Documents ingested.")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("value = %d, want 5", c.Value())
	}
	// Same name returns the same counter.
	if reg.Counter("ingest_documents_total", "").Value() != 5 {
		t.Error("second lookup returned a fresh counter")
	}
}

func TestGauge(t *testing.T) {
	reg := New()
	g := reg.Gauge("index_points", "Points in the vector index.")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 9 {
		t.Errorf("value = %d, want 9", g.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	reg := New()
	h := reg.Histogram("rag_query_seconds", "Query latency.", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(0.7)
	h.Observe(99) // above every bound, counted only in +Inf

	out := reg.Render()
	wantLines := []string{
		`rag_query_seconds_bucket{le="0.1"} 1`,
		`rag_query_seconds_bucket{le="1"} 3`,
		`rag_query_seconds_bucket{le="10"} 3`,
		`rag_query_seconds_bucket{le="+Inf"} 4`,
		`rag_query_seconds_count 4`,
	}
	for _, line := range wantLines {
		if !strings.Contains(out, line) {
			t.Errorf("render missing %q\n%s", line, out)
		}
	}
}

func TestHistogramSince(t *testing.T) {
	reg := New()
	h := reg.Histogram("op_seconds", "", nil)
	h.Since(time.Now().Add(-5 * time.Millisecond))
	_, _, sum, total := h.snapshot()
	if total != 1 || sum <= 0 {
		t.Errorf("total = %d, sum = %g", total, sum)
	}
}

func TestWithLabels(t *testing.T) {
	name := WithLabels("docs_total", "source", "blog_post")
	if name != `docs_total{source="blog_post"}` {
		t.Errorf("name = %s", name)
	}
	if WithLabels("docs_total") != "docs_total" {
		t.Error("no labels should leave the name alone")
	}
	if WithLabels("docs_total", "odd") != "docs_total" {
		t.Error("odd pair count should leave the name alone")
	}
}

func TestLabeledSeriesRenderSeparately(t *testing.T) {
	reg := New()
	reg.Counter(WithLabels("docs_total", "source", "blog_post"), "Docs by source.").Add(3)
	reg.Counter(WithLabels("docs_total", "source", "podcast_transcript"), "").Inc()

	out := reg.Render()
	if !strings.Contains(out, `docs_total{source="blog_post"} 3`) {
		t.Errorf("missing blog series\n%s", out)
	}
	if !strings.Contains(out, `docs_total{source="podcast_transcript"} 1`) {
		t.Errorf("missing podcast series\n%s", out)
	}
	if strings.Count(out, "# TYPE docs_total counter") != 1 {
		t.Errorf("family header should render once\n%s", out)
	}
}

func TestRenderOrderAndHelp(t *testing.T) {
	reg := New()
	reg.Counter("b_total", "Second registered? No, first.").Inc()
	reg.Gauge("a_gauge", "Registered after the counter.").Set(1)

	out := reg.Render()
	if strings.Index(out, "b_total") > strings.Index(out, "a_gauge") {
		t.Errorf("families should render in registration order\n%s", out)
	}
	if !strings.Contains(out, "# HELP b_total Second registered? No, first.") {
		t.Errorf("missing help line\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	reg := New()
	reg.Counter("hits_total", "").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Errorf("body missing counter\n%s", rec.Body.String())
	}
}
