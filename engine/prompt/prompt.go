// Package prompt assembles LLM prompts from retrieved context, picking a
// specialized template when the query's topic is recognizable.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
)

// NoContextSentinel stands in for the context block when retrieval returns
// nothing, so the model is told explicitly that the knowledge base was empty
// rather than handed a blank section.
const NoContextSentinel = "No relevant information found in the knowledge base."

// Topic labels a query's detected subject area.
type Topic string

const (
	TopicExercise  Topic = "exercise"
	TopicNutrition Topic = "nutrition"
	TopicSleep     Topic = "sleep"
	TopicStress    Topic = "stress"
	TopicGeneral   Topic = "general"
)

// topicRules are checked in order; the first rule with any keyword present
// in the lowercased query wins.
var topicRules = []struct {
	topic    Topic
	keywords []string
}{
	{TopicExercise, []string{"exercise", "workout", "fitness", "training", "physical"}},
	{TopicNutrition, []string{"nutrition", "diet", "food", "eat", "meal"}},
	{TopicSleep, []string{"sleep", "rest", "circadian", "insomnia"}},
	{TopicStress, []string{"stress", "anxiety", "meditation", "mindfulness"}},
}

// DetectTopic classifies a query by keyword, falling back to general.
func DetectTopic(query string) Topic {
	q := strings.ToLower(query)
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.topic
			}
		}
	}
	return TopicGeneral
}

// TemplateFor returns the template text for a topic.
func TemplateFor(topic Topic) string {
	switch topic {
	case TopicExercise:
		return exerciseTemplate
	case TopicNutrition:
		return nutritionTemplate
	case TopicSleep:
		return sleepTemplate
	case TopicStress:
		return stressTemplate
	default:
		return baseTemplate
	}
}

// FormatContext renders retrieval results as numbered source blocks in rank
// order. Results are expected already sorted by descending similarity.
func FormatContext(results []domain.RetrievalResult) string {
	if len(results) == 0 {
		return NoContextSentinel
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		source := fmt.Sprintf("Source %d", i+1)
		if r.SourceURL != "" {
			source += fmt.Sprintf(" (%s)", r.SourceURL)
		}
		parts = append(parts, fmt.Sprintf("%s (Relevance: %.2f):\n%s", source, r.SimilarityScore, r.Content))
	}
	return strings.Join(parts, "\n\n")
}

// Create substitutes the query and context into the template. Placeholders
// are literal {query} and {context} tokens.
func Create(template, query, context string) string {
	out := strings.ReplaceAll(template, "{query}", query)
	return strings.ReplaceAll(out, "{context}", context)
}

// ForQuery assembles the full prompt for a query: detect the topic, pick its
// template and splice in the formatted context.
func ForQuery(query string, results []domain.RetrievalResult) (string, Topic) {
	topic := DetectTopic(query)
	return Create(TemplateFor(topic), query, FormatContext(results)), topic
}
