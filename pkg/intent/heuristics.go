// Package intent routes an incoming chat message either to the multi-step
// planning workflow or to a direct reply. A cheap heuristic tier decides
// most messages; only ambiguous ones reach the model tier.
package intent

import (
	"regexp"
	"strings"
)

// Intent is a routing decision.
type Intent string

const (
	Workflow Intent = "workflow"
	General  Intent = "general"
	// Unknown is only produced by the heuristic tier and means "ask the model".
	Unknown Intent = "unknown"
)

var (
	greetingPattern      = regexp.MustCompile(`^(hi|hello|hey|yo|thanks|thank you|good (morning|afternoon|evening)|how are you|what'?s up)\b`)
	interrogativePattern = regexp.MustCompile(`^(what|why|how|when|where|who|can|could|should|is|are|do|does)\b`)
)

const (
	maxGreetingTokens  = 5
	maxSmallTalkTokens = 10
)

var domainTerms = []string{
	"product",
	"prd",
	"brd",
	"requirement",
	"requirements",
	"feature",
	"features",
	"mvp",
	"roadmap",
	"persona",
	"user story",
	"workflow",
	"business",
	"app",
	"application",
	"platform",
	"saas",
	"scope",
	"success metric",
	"constraint",
	"go-to-market",
}

var actionTerms = []string{
	"build",
	"create",
	"design",
	"draft",
	"generate",
	"write",
	"plan",
	"prioritize",
	"convert",
	"define",
	"propose",
	"break down",
	"spec",
	"specify",
}

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// ClassifyHeuristic is the zero-cost first tier. It returns Workflow, General
// or Unknown.
func ClassifyHeuristic(raw string) Intent {
	text := normalize(raw)
	if text == "" {
		return General
	}

	tokens := len(strings.Split(text, " "))
	if tokens <= maxGreetingTokens && greetingPattern.MatchString(text) {
		return General
	}

	hasDomain := containsAny(text, domainTerms)
	hasAction := containsAny(text, actionTerms)
	isQuestion := strings.Contains(raw, "?") || interrogativePattern.MatchString(text)

	switch {
	case hasDomain && hasAction:
		return Workflow
	case isQuestion && !hasDomain:
		return General
	case !hasDomain && !hasAction && tokens <= maxSmallTalkTokens:
		return General
	default:
		return Unknown
	}
}
