package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/helpdeskhq/insight/internal/common"
	"github.com/helpdeskhq/insight/internal/llm"
)

// ErrBadIntent reports that the completion service returned output that does
// not conform to the intent schema. It is propagated, never coerced into a
// default intent: a wrong-but-valid intent beats guessing.
var ErrBadIntent = errors.New("malformed query intent")

const analyzerInstruction = `You classify customer-support questions about tickets into a JSON object.
Respond with a single JSON object and nothing else, using exactly this shape:

{
  "queryType": "count" | "trend" | "distribution" | "list" | "search",
  "filters": {
    "status": "new" | "open" | "pending" | "resolved" | "closed",
    "priority": "low" | "medium" | "high" | "urgent",
    "timeRange": "day" | "yesterday" | "week" | "month" | "year",
    "assignedTo": "me" or a person's name,
    "assignedToTeam": a team name,
    "assignedToTeamMembers": a team name
  },
  "visualization": "none" | "bar" | "line" | "pie"
}

Omit any filter that the question does not mention. Examples:

Q: "How many tickets were closed yesterday?"
A: {"queryType":"count","filters":{"status":"closed","timeRange":"yesterday"},"visualization":"none"}

Q: "Show me the ticket trend for this week as a line chart"
A: {"queryType":"trend","filters":{},"visualization":"line"}

Q: "What is the distribution of high priority tickets?"
A: {"queryType":"distribution","filters":{"priority":"high"},"visualization":"pie"}

Q: "List open tickets assigned to me"
A: {"queryType":"list","filters":{"status":"open","assignedTo":"me"},"visualization":"none"}

Q: "Which tickets are assigned to the billing team?"
A: {"queryType":"list","filters":{"assignedToTeam":"billing"},"visualization":"none"}

Q: "Tickets being worked on by members of the support team"
A: {"queryType":"list","filters":{"assignedToTeamMembers":"support"},"visualization":"none"}`

// Analyzer turns a free-text question into a validated Intent via the
// language-completion service.
type Analyzer struct {
	provider llm.Provider
}

func NewAnalyzer(provider llm.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Analyze requests a forced-JSON completion and validates the result against
// the intent schema. Unknown query types, filter keys, or enum values fail
// with ErrBadIntent.
func (a *Analyzer) Analyze(ctx context.Context, question string) (Intent, error) {
	logger := common.Logger()
	raw, err := a.provider.ChatJSON(ctx, analyzerInstruction, question)
	if err != nil {
		return Intent{}, fmt.Errorf("analyze question: %w", err)
	}
	intent, err := parseIntent(raw)
	if err != nil {
		logger.Warn("search: rejecting malformed intent", "raw", raw, "error", err)
		return Intent{}, err
	}
	logger.Debug("search: question analyzed", "query_type", intent.QueryType, "visualization", intent.Visualization)
	return intent, nil
}

var (
	allowedTopKeys    = map[string]struct{}{"queryType": {}, "filters": {}, "visualization": {}}
	allowedFilterKeys = map[string]struct{}{
		"status": {}, "priority": {}, "timeRange": {},
		"assignedTo": {}, "assignedToTeam": {}, "assignedToTeamMembers": {},
	}
	allowedQueryTypes = map[QueryType]struct{}{
		QueryCount: {}, QueryTrend: {}, QueryDistribution: {}, QueryList: {}, QuerySearch: {},
	}
	allowedTimeRanges = map[TimeRange]struct{}{
		TimeDay: {}, TimeYesterday: {}, TimeWeek: {}, TimeMonth: {}, TimeYear: {},
	}
	allowedVisuals = map[Visualization]struct{}{
		VisualNone: {}, VisualBar: {}, VisualLine: {}, VisualPie: {},
	}
)

func parseIntent(raw string) (Intent, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Intent{}, fmt.Errorf("%w: empty completion", ErrBadIntent)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &top); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrBadIntent, err)
	}
	for key := range top {
		if _, ok := allowedTopKeys[key]; !ok {
			return Intent{}, fmt.Errorf("%w: unknown key %q", ErrBadIntent, key)
		}
	}
	if filtersRaw, ok := top["filters"]; ok && string(filtersRaw) != "null" {
		var filterKeys map[string]json.RawMessage
		if err := json.Unmarshal(filtersRaw, &filterKeys); err != nil {
			return Intent{}, fmt.Errorf("%w: %v", ErrBadIntent, err)
		}
		for key := range filterKeys {
			if _, ok := allowedFilterKeys[key]; !ok {
				return Intent{}, fmt.Errorf("%w: unknown filter key %q", ErrBadIntent, key)
			}
		}
	}

	var intent Intent
	if err := json.Unmarshal([]byte(trimmed), &intent); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrBadIntent, err)
	}
	intent.QueryType = QueryType(strings.ToLower(string(intent.QueryType)))
	if _, ok := allowedQueryTypes[intent.QueryType]; !ok {
		return Intent{}, fmt.Errorf("%w: unknown query type %q", ErrBadIntent, intent.QueryType)
	}
	if intent.Filters.TimeRange != "" {
		intent.Filters.TimeRange = TimeRange(strings.ToLower(string(intent.Filters.TimeRange)))
		if _, ok := allowedTimeRanges[intent.Filters.TimeRange]; !ok {
			return Intent{}, fmt.Errorf("%w: unknown time range %q", ErrBadIntent, intent.Filters.TimeRange)
		}
	}
	if intent.Visualization == "" {
		intent.Visualization = VisualNone
	}
	intent.Visualization = Visualization(strings.ToLower(string(intent.Visualization)))
	if _, ok := allowedVisuals[intent.Visualization]; !ok {
		return Intent{}, fmt.Errorf("%w: unknown visualization %q", ErrBadIntent, intent.Visualization)
	}
	return intent, nil
}
