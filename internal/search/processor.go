package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/helpdeskhq/insight/internal/common"
	"github.com/helpdeskhq/insight/internal/store"
)

// Processor applies an intent's filters to retrieved candidates, resolves
// assignment references against the directory, and renders the answer.
type Processor struct {
	dir Directory
	now func() time.Time
}

type ProcessorOption func(*Processor)

// WithProcessorClock overrides the time source used for relative-date
// calculations. Tests use this to pin "today".
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(dir Directory, opts ...ProcessorOption) *Processor {
	p := &Processor{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ticketRecord is the typed view of a ticket candidate's metadata.
type ticketRecord struct {
	ID           string
	Subject      string
	Status       string
	Priority     string
	AssigneeType string
	AssignedTo   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Process runs the filter pipeline and renders the response for the intent's
// query type. Comment candidates only influence similarity ranking upstream;
// they are dropped here.
func (p *Processor) Process(ctx context.Context, candidates []Candidate, intent Intent, currentUserID string) (Response, error) {
	records := ticketRecords(candidates)
	filters := intent.Filters

	records = p.filterByTime(records, filters)
	records = filterByStatus(records, filters.Status)

	var err error
	records, err = p.filterByTeamMembers(ctx, records, filters.AssignedToTeamMembers)
	if err != nil {
		return Response{}, err
	}
	records, err = p.filterByTeam(ctx, records, filters.AssignedToTeam)
	if err != nil {
		return Response{}, err
	}
	records, err = p.filterByAssignee(ctx, records, filters.AssignedTo, currentUserID)
	if err != nil {
		return Response{}, err
	}
	// Distribution keeps the full priority spread so the breakdown has more
	// than one bucket; the priority key only selects the grouping dimension.
	if intent.QueryType != QueryDistribution {
		records = filterByPriority(records, filters.Priority)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return priorityRank(records[i].Priority) < priorityRank(records[j].Priority)
	})

	var resp Response
	switch intent.QueryType {
	case QueryCount, QueryList:
		resp, err = p.renderList(ctx, records, filters)
		if err != nil {
			return Response{}, err
		}
	case QueryTrend:
		resp = p.renderTrend(records)
	case QueryDistribution:
		resp = renderDistribution(records, filters)
	default:
		resp = Response{Text: fmt.Sprintf("Found %d %s related to your question.", len(records), pluralTickets(len(records)))}
	}
	if intent.Visualization != VisualNone && intent.Visualization != "" {
		resp.VisualType = string(intent.Visualization)
	}
	common.Logger().Debug("search: processed candidates", "in", len(candidates), "kept", len(records), "query_type", intent.QueryType)
	return resp, nil
}

func ticketRecords(candidates []Candidate) []ticketRecord {
	records := make([]ticketRecord, 0, len(candidates))
	for _, candidate := range candidates {
		if metaString(candidate.Metadata, "type") != "ticket" {
			continue
		}
		records = append(records, ticketRecord{
			ID:           metaString(candidate.Metadata, "id"),
			Subject:      metaString(candidate.Metadata, "subject"),
			Status:       metaString(candidate.Metadata, "status"),
			Priority:     metaString(candidate.Metadata, "priority"),
			AssigneeType: metaString(candidate.Metadata, "assignee_type"),
			AssignedTo:   metaString(candidate.Metadata, "assigned_to"),
			CreatedAt:    metaTime(candidate.Metadata, "created_at"),
			UpdatedAt:    metaTime(candidate.Metadata, "updated_at"),
		})
	}
	return records
}

// filterByTime keeps tickets whose relevant calendar day matches the target
// day. The relevant date is updated_at for closed-status queries, otherwise
// created_at. Only day and yesterday are implemented; the remaining ranges
// the schema advertises match nothing.
func (p *Processor) filterByTime(records []ticketRecord, filters Filters) []ticketRecord {
	if filters.TimeRange == "" {
		return records
	}
	now := p.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var target time.Time
	switch filters.TimeRange {
	case TimeDay:
		target = today
	case TimeYesterday:
		target = today.AddDate(0, 0, -1)
	default:
		return nil
	}
	useUpdated := strings.EqualFold(filters.Status, "closed")
	out := records[:0]
	for _, rec := range records {
		relevant := rec.CreatedAt
		if useUpdated {
			relevant = rec.UpdatedAt
		}
		if relevant.IsZero() {
			continue
		}
		if sameDay(relevant.In(now.Location()), target) {
			out = append(out, rec)
		}
	}
	return out
}

func filterByStatus(records []ticketRecord, status string) []ticketRecord {
	if status == "" {
		return records
	}
	out := records[:0]
	for _, rec := range records {
		if strings.EqualFold(rec.Status, status) {
			out = append(out, rec)
		}
	}
	return out
}

// filterByTeamMembers keeps tickets assigned to any individual member of the
// named team. An unresolvable team name matches nothing; it is not an error.
func (p *Processor) filterByTeamMembers(ctx context.Context, records []ticketRecord, teamName string) ([]ticketRecord, error) {
	if teamName == "" {
		return records, nil
	}
	team, err := p.dir.FindTeamByName(ctx, teamName)
	if err != nil {
		return nil, fmt.Errorf("resolve team %q: %w", teamName, err)
	}
	if team == nil {
		return nil, nil
	}
	memberIDs, err := p.dir.TeamMemberIDs(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("list members of team %q: %w", teamName, err)
	}
	members := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}
	out := records[:0]
	for _, rec := range records {
		if _, ok := members[rec.AssignedTo]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *Processor) filterByTeam(ctx context.Context, records []ticketRecord, teamName string) ([]ticketRecord, error) {
	if teamName == "" {
		return records, nil
	}
	team, err := p.dir.FindTeamByName(ctx, teamName)
	if err != nil {
		return nil, fmt.Errorf("resolve team %q: %w", teamName, err)
	}
	if team == nil {
		return nil, nil
	}
	out := records[:0]
	for _, rec := range records {
		if strings.EqualFold(rec.AssigneeType, string(store.AssigneeTeam)) && rec.AssignedTo == team.ID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// filterByAssignee keeps tickets assigned to the named person. The "me"
// sentinel compares against the asking user's id stringwise; any other value
// is resolved as a partial display name, first match wins.
func (p *Processor) filterByAssignee(ctx context.Context, records []ticketRecord, assignedTo, currentUserID string) ([]ticketRecord, error) {
	if assignedTo == "" {
		return records, nil
	}
	targetID := ""
	if assignedTo == AssignedToMe {
		targetID = currentUserID
	} else {
		user, err := p.dir.FindUserByName(ctx, assignedTo)
		if err != nil {
			return nil, fmt.Errorf("resolve user %q: %w", assignedTo, err)
		}
		if user != nil {
			targetID = user.ID
		}
	}
	if targetID == "" {
		return nil, nil
	}
	out := records[:0]
	for _, rec := range records {
		if rec.AssignedTo == targetID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func filterByPriority(records []ticketRecord, priority string) []ticketRecord {
	if priority == "" {
		return records
	}
	out := records[:0]
	for _, rec := range records {
		if strings.EqualFold(rec.Priority, priority) {
			out = append(out, rec)
		}
	}
	return out
}

// renderList produces the count/list answer: a header sentence followed by
// one line per ticket. Assignee names are resolved concurrently and joined
// before rendering; ordering stays fixed by the earlier sort.
func (p *Processor) renderList(ctx context.Context, records []ticketRecord, filters Filters) (Response, error) {
	if len(records) == 0 {
		return Response{Text: emptySentence(filters)}, nil
	}

	names := make([]string, len(records))
	errs := make([]error, len(records))
	var wg sync.WaitGroup
	for i, rec := range records {
		if !strings.EqualFold(rec.AssigneeType, string(store.AssigneeUser)) || rec.AssignedTo == "" {
			continue
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			user, err := p.dir.GetUserByID(ctx, id)
			if err != nil {
				errs[i] = err
				return
			}
			if user != nil {
				names[i] = user.FullName
			}
		}(i, rec.AssignedTo)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return Response{}, fmt.Errorf("resolve assignee: %w", err)
		}
	}

	now := p.now()
	var b strings.Builder
	b.WriteString(headerSentence(len(records), filters))
	for i, rec := range records {
		assignee := names[i]
		if assignee == "" {
			assignee = "Unassigned"
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s [#%s](/tickets/%s) %s — %s (%s) · %s · %s",
			priorityGlyph(rec.Priority),
			rec.ID, rec.ID,
			rec.Subject,
			strings.ToLower(rec.Status), statusColor(rec.Status),
			assignee,
			relativeDay(rec.CreatedAt, now),
		)
	}
	return Response{Text: b.String()}, nil
}

// renderTrend buckets tickets by the relative day of creation and counts per
// bucket in chronological order.
func (p *Processor) renderTrend(records []ticketRecord) Response {
	now := p.now()
	counts := make(map[time.Time]int)
	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			continue
		}
		local := rec.CreatedAt.In(now.Location())
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, now.Location())
		counts[day]++
	}
	if len(counts) == 0 {
		return Response{Text: "There is no ticket activity to chart."}
	}
	days := make([]time.Time, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	data := make([]DataPoint, 0, len(days))
	for _, day := range days {
		data = append(data, DataPoint{Name: relativeDay(day, now), Value: counts[day]})
	}
	return Response{
		Text: fmt.Sprintf("Ticket activity across %d day(s), %d %s in total.", len(days), len(records), pluralTickets(len(records))),
		Data: data,
	}
}

// renderDistribution groups by priority when the intent filtered on
// priority, otherwise by status. Bucket order is not significant.
func renderDistribution(records []ticketRecord, filters Filters) Response {
	byPriority := filters.Priority != ""
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, rec := range records {
		key := strings.ToLower(rec.Status)
		if byPriority {
			key = strings.ToLower(rec.Priority)
		}
		if key == "" {
			key = "unknown"
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	if len(counts) == 0 {
		return Response{Text: "There are no tickets to break down."}
	}
	dimension := "status"
	if byPriority {
		dimension = "priority"
	}
	data := make([]DataPoint, 0, len(order))
	for _, key := range order {
		data = append(data, DataPoint{Name: key, Value: counts[key]})
	}
	return Response{
		Text: fmt.Sprintf("Distribution of %d %s by %s.", len(records), pluralTickets(len(records)), dimension),
		Data: data,
	}
}

// emptySentence picks the most specific filter to explain an empty result.
func emptySentence(f Filters) string {
	switch {
	case f.AssignedToTeamMembers != "":
		return fmt.Sprintf("No tickets are currently assigned to members of the %s team.", f.AssignedToTeamMembers)
	case f.AssignedToTeam != "":
		return fmt.Sprintf("No tickets are currently assigned to the %s team.", f.AssignedToTeam)
	case f.AssignedTo == AssignedToMe:
		return "No tickets are currently assigned to you."
	case f.AssignedTo != "":
		return fmt.Sprintf("No tickets are currently assigned to %s.", f.AssignedTo)
	case f.TimeRange != "" && f.Status != "":
		return fmt.Sprintf("No tickets were %s %s.", strings.ToLower(f.Status), timeLabel(f.TimeRange))
	case f.Status != "":
		return fmt.Sprintf("No %s tickets were found.", strings.ToLower(f.Status))
	case f.TimeRange != "":
		return fmt.Sprintf("No tickets were created %s.", timeLabel(f.TimeRange))
	default:
		return "No tickets were found matching your query."
	}
}

func headerSentence(n int, f Filters) string {
	tickets := pluralTickets(n)
	isAre := "is"
	wasWere := "was"
	if n != 1 {
		isAre = "are"
		wasWere = "were"
	}
	switch {
	case f.AssignedToTeamMembers != "":
		return fmt.Sprintf("%d %s %s assigned to members of the %s team:", n, tickets, isAre, f.AssignedToTeamMembers)
	case f.AssignedToTeam != "":
		return fmt.Sprintf("%d %s %s assigned to the %s team:", n, tickets, isAre, f.AssignedToTeam)
	case f.AssignedTo == AssignedToMe:
		return fmt.Sprintf("%d %s %s assigned to you:", n, tickets, isAre)
	case f.AssignedTo != "":
		return fmt.Sprintf("%d %s %s assigned to %s:", n, tickets, isAre, f.AssignedTo)
	case f.TimeRange != "" && f.Status != "":
		return fmt.Sprintf("%d %s %s %s %s:", n, tickets, wasWere, strings.ToLower(f.Status), timeLabel(f.TimeRange))
	case f.Status != "":
		return fmt.Sprintf("%d %s %s currently %s:", n, tickets, isAre, strings.ToLower(f.Status))
	case f.TimeRange != "":
		return fmt.Sprintf("%d %s %s created %s:", n, tickets, wasWere, timeLabel(f.TimeRange))
	default:
		return fmt.Sprintf("Found %d matching %s:", n, tickets)
	}
}

func timeLabel(r TimeRange) string {
	switch r {
	case TimeDay:
		return "today"
	case TimeYesterday:
		return "yesterday"
	default:
		return fmt.Sprintf("this %s", string(r))
	}
}

func pluralTickets(n int) string {
	if n == 1 {
		return "ticket"
	}
	return "tickets"
}

func priorityRank(priority string) int {
	switch strings.ToLower(priority) {
	case "urgent":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	default:
		return 4
	}
}

func priorityGlyph(priority string) string {
	switch strings.ToLower(priority) {
	case "urgent":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	case "low":
		return "🟢"
	default:
		return "⚪"
	}
}

var statusColors = map[string]string{
	"new":      "blue",
	"open":     "green",
	"pending":  "orange",
	"resolved": "purple",
	"closed":   "gray",
}

func statusColor(status string) string {
	if color, ok := statusColors[strings.ToLower(status)]; ok {
		return color
	}
	return "gray"
}

func relativeDay(t time.Time, now time.Time) string {
	local := t.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case sameDay(local, today):
		return "today"
	case sameDay(local, today.AddDate(0, 0, -1)):
		return "yesterday"
	default:
		return local.Format("Jan 2, 2006")
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func metaString(metadata map[string]interface{}, key string) string {
	switch v := metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func metaTime(metadata map[string]interface{}, key string) time.Time {
	raw := metaString(metadata, key)
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
