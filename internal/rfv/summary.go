package rfv

import (
	"sort"

	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// ScoreCount is the number of customers sharing one RFV score.
type ScoreCount struct {
	Score string `json:"score"`
	Count int    `json:"count"`
}

// ActionCount is the number of customers sharing one suggested action.
// A nil Action counts customers with no suggestion.
type ActionCount struct {
	Action *string `json:"action"`
	Count  int     `json:"count"`
}

// ScoreCounts counts customers per score, most common first; ties by score.
func (r *Result) ScoreCounts() []ScoreCount {
	counts := make(map[string]int)
	for _, c := range r.Customers {
		counts[c.RFVScore]++
	}
	out := make([]ScoreCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, ScoreCount{Score: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Score < out[j].Score
	})
	return out
}

// TopCustomers returns up to n customers with the given score, highest
// value first. Equal values keep their table order.
func (r *Result) TopCustomers(score string, n int) []entity.CustomerRFV {
	var out []entity.CustomerRFV
	for _, c := range r.Customers {
		if c.RFVScore == score {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ActionDistribution counts customers per suggested action, the "no
// suggestion" bucket included, most common first.
func (r *Result) ActionDistribution() []ActionCount {
	counts := make(map[string]int)
	none := 0
	for _, c := range r.Customers {
		if c.SuggestedAction == nil {
			none++
			continue
		}
		counts[*c.SuggestedAction]++
	}
	out := make([]ActionCount, 0, len(counts)+1)
	for a, n := range counts {
		a := a
		out = append(out, ActionCount{Action: &a, Count: n})
	}
	if none > 0 {
		out = append(out, ActionCount{Action: nil, Count: none})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return actionKey(out[i].Action) < actionKey(out[j].Action)
	})
	return out
}

func actionKey(a *string) string {
	if a == nil {
		return ""
	}
	return *a
}

// Head returns the first n customers of the joined table.
func (r *Result) Head(n int) []entity.CustomerRFV {
	if n < 0 || n > len(r.Customers) {
		n = len(r.Customers)
	}
	return r.Customers[:n]
}

// head trims any table preview to n rows.
func head[T any](rows []T, n int) []T {
	if n < 0 || n > len(rows) {
		n = len(rows)
	}
	return rows[:n]
}

// Preview is the read-only view set rendered by the front ends.
type Preview struct {
	RunID              string               `json:"run_id"`
	ReferenceDate      string               `json:"reference_date"`
	RecordCount        int                  `json:"record_count"`
	CustomerCount      int                  `json:"customer_count"`
	Recency            []RecencyRow         `json:"recency"`
	Frequency          []FrequencyRow       `json:"frequency"`
	Value              []ValueRow           `json:"value"`
	Customers          []entity.CustomerRFV `json:"customers"`
	Quartiles          entity.Quartiles     `json:"quartiles"`
	ScoreCounts        []ScoreCount         `json:"score_counts"`
	TopScore           string               `json:"top_score"`
	TopCustomers       []entity.CustomerRFV `json:"top_customers"`
	ActionDistribution []ActionCount        `json:"action_distribution"`
}

// BuildPreview assembles the views, cutting each table to rows entries and
// the top-segment list to top entries.
func (r *Result) BuildPreview(rows int, topScore string, top int) Preview {
	return Preview{
		RunID:              r.RunID.String(),
		ReferenceDate:      r.ReferenceDate.Format("2006-01-02 15:04:05"),
		RecordCount:        r.RecordCount,
		CustomerCount:      len(r.Customers),
		Recency:            head(r.Recency, rows),
		Frequency:          head(r.Frequency, rows),
		Value:              head(r.Value, rows),
		Customers:          r.Head(rows),
		Quartiles:          r.Quartiles,
		ScoreCounts:        r.ScoreCounts(),
		TopScore:           topScore,
		TopCustomers:       r.TopCustomers(topScore, top),
		ActionDistribution: r.ActionDistribution(),
	}
}
