package search

// QueryType classifies what kind of answer a question expects.
type QueryType string

const (
	QueryCount        QueryType = "count"
	QueryTrend        QueryType = "trend"
	QueryDistribution QueryType = "distribution"
	QueryList         QueryType = "list"
	QuerySearch       QueryType = "search"
)

// TimeRange is the temporal window named by an intent. The schema accepts
// week/month/year but the time filter only implements day and yesterday; the
// remaining values match no tickets.
type TimeRange string

const (
	TimeDay       TimeRange = "day"
	TimeYesterday TimeRange = "yesterday"
	TimeWeek      TimeRange = "week"
	TimeMonth     TimeRange = "month"
	TimeYear      TimeRange = "year"
)

// Visualization is the chart hint carried by an intent.
type Visualization string

const (
	VisualNone Visualization = "none"
	VisualBar  Visualization = "bar"
	VisualLine Visualization = "line"
	VisualPie  Visualization = "pie"
)

// AssignedToMe is the sentinel the analyzer emits when the question refers
// to the asking user.
const AssignedToMe = "me"

// Filters restricts the candidate set during processing. Zero values mean
// "not filtered".
type Filters struct {
	Status                string    `json:"status,omitempty"`
	Priority              string    `json:"priority,omitempty"`
	TimeRange             TimeRange `json:"timeRange,omitempty"`
	AssignedTo            string    `json:"assignedTo,omitempty"`
	AssignedToTeam        string    `json:"assignedToTeam,omitempty"`
	AssignedToTeamMembers string    `json:"assignedToTeamMembers,omitempty"`
}

// Intent is the structured form of a natural-language question. It is
// produced once per question and never mutated afterwards.
type Intent struct {
	QueryType     QueryType     `json:"queryType"`
	Filters       Filters       `json:"filters"`
	Visualization Visualization `json:"visualization"`
}

// Candidate is a read-only projection of an indexed document returned by
// similarity search.
type Candidate struct {
	Metadata map[string]interface{}
	Score    float32
}

// DataPoint is one aggregation bucket for charting.
type DataPoint struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Response is the rendered answer. Data is nil unless a trend or
// distribution aggregation produced at least one bucket.
type Response struct {
	Text       string      `json:"text"`
	Data       []DataPoint `json:"data,omitempty"`
	VisualType string      `json:"visual_type,omitempty"`
}
