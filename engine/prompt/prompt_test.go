package prompt

import (
	"strings"
	"testing"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
)

func TestDetectTopic(t *testing.T) {
	cases := []struct {
		query string
		want  Topic
	}{
		{"What is the best workout routine for longevity?", TopicExercise},
		{"How does strength TRAINING affect aging?", TopicExercise},
		{"what should I eat", TopicNutrition},
		{"What should I eat to live longer?", TopicNutrition},
		{"Is a Mediterranean diet good for longevity?", TopicNutrition},
		{"What are healthy eating habits?", TopicNutrition},
		{"How much sleep do I need?", TopicSleep},
		{"Does meditation slow aging?", TopicStress},
		{"Tell me about telomeres", TopicGeneral},
		// exercise keywords outrank nutrition keywords when both appear
		{"Should I eat before a workout?", TopicExercise},
	}
	for _, tc := range cases {
		if got := DetectTopic(tc.query); got != tc.want {
			t.Errorf("DetectTopic(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestFormatContextEmpty(t *testing.T) {
	if got := FormatContext(nil); got != NoContextSentinel {
		t.Fatalf("FormatContext(nil) = %q", got)
	}
}

func TestFormatContext(t *testing.T) {
	results := []domain.RetrievalResult{
		{Content: "Zone 2 cardio improves mitochondrial function.", SimilarityScore: 0.91, SourceURL: "https://example.org/zone2"},
		{Content: "VO2 max is a strong predictor of lifespan.", SimilarityScore: 0.8},
	}
	got := FormatContext(results)

	if !strings.HasPrefix(got, "Source 1 (https://example.org/zone2) (Relevance: 0.91):\nZone 2 cardio") {
		t.Errorf("first block malformed:\n%s", got)
	}
	if !strings.Contains(got, "\n\nSource 2 (Relevance: 0.80):\nVO2 max") {
		t.Errorf("second block malformed:\n%s", got)
	}
}

func TestCreate(t *testing.T) {
	got := Create("Q: {query}\nC: {context}", "how to age well", "stay active")
	want := "Q: how to age well\nC: stay active"
	if got != want {
		t.Fatalf("Create = %q, want %q", got, want)
	}
}

func TestForQuery(t *testing.T) {
	results := []domain.RetrievalResult{{Content: "Protein intake matters.", SimilarityScore: 0.75}}
	out, topic := ForQuery("best diet for healthy aging", results)
	if topic != TopicNutrition {
		t.Fatalf("topic = %s, want nutrition", topic)
	}
	if !strings.Contains(out, "longevity-focused nutritionist") {
		t.Error("nutrition template not used")
	}
	if !strings.Contains(out, "best diet for healthy aging") {
		t.Error("query not substituted")
	}
	if !strings.Contains(out, "Source 1 (Relevance: 0.75):\nProtein intake matters.") {
		t.Error("context not substituted")
	}
	if strings.Contains(out, "{query}") || strings.Contains(out, "{context}") {
		t.Error("placeholders left in prompt")
	}
}

func TestForQueryNoResults(t *testing.T) {
	out, topic := ForQuery("anything about telomeres", nil)
	if topic != TopicGeneral {
		t.Fatalf("topic = %s, want general", topic)
	}
	if !strings.Contains(out, NoContextSentinel) {
		t.Error("sentinel missing from prompt")
	}
}
