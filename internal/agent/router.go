package agent

import "strings"

// Route names the information source chosen for a query.
type Route string

const (
	// RouteKnowledgeBase answers from the vector index.
	RouteKnowledgeBase Route = "KNOWLEDGE_BASE"

	// RouteWebSearch answers from live web results.
	RouteWebSearch Route = "WEB_SEARCH"
)

// webIndicators mark a query as time-sensitive. Matching is by
// case-insensitive substring, so "news" also matches "newsworthy".
var webIndicators = []string{
	"today", "latest", "current", "recent", "new", "update", "updated",
	"2024", "2025", "now", "this year", "this month", "this week",
	"breaking", "news", "regulation", "regulatory", "price change",
	"announcement", "launch", "released", "just", "recently",
}

// routeQuery picks the information source without an LLM call.
// Knowledge base is the default; web search is used only for queries
// that ask about current or recent information.
func routeQuery(query string) Route {
	lower := strings.ToLower(query)
	for _, indicator := range webIndicators {
		if strings.Contains(lower, indicator) {
			return RouteWebSearch
		}
	}
	return RouteKnowledgeBase
}
