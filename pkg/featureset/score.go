package featureset

import (
	"sort"
)

var priorityBase = map[string]int{
	"core":   100,
	"high":   70,
	"medium": 45,
	"low":    20,
}

const (
	dependencyPenalty    = 4
	maxDependencyPenalty = 20
)

// ScoreCandidate computes max(0, base(priorityHint) - min(20, 4*len(dependencies))).
// Unknown or non-string hints score as low and non-array dependencies count
// as none.
func ScoreCandidate(candidate map[string]any) int {
	base := priorityBase["low"]
	if hint, ok := candidate["priorityHint"].(string); ok {
		if b, known := priorityBase[hint]; known {
			base = b
		}
	}

	deps := 0
	if list, ok := candidate["dependencies"].([]any); ok {
		deps = len(list)
	}

	penalty := min(maxDependencyPenalty, dependencyPenalty*deps)
	return max(0, base-penalty)
}

// ScoreFeatures implements the score-features program. Every candidate keeps
// its original fields and gains a score; the result is stably sorted by
// descending score.
func ScoreFeatures(payload any) map[string]any {
	var candidates []any
	if obj, ok := payload.(map[string]any); ok {
		candidates, _ = obj["candidates"].([]any)
	}

	scored := make([]map[string]any, 0, len(candidates))
	for _, c := range candidates {
		fields, _ := c.(map[string]any)
		out := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			out[k] = v
		}
		out["score"] = ScoreCandidate(fields)
		scored = append(scored, out)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i]["score"].(int) > scored[j]["score"].(int)
	})

	return map[string]any{
		"ok":     true,
		"scored": scored,
	}
}
