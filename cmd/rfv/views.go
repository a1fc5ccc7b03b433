package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/joseph-ayodele/rfv-segments/internal/entity"
	"github.com/joseph-ayodele/rfv-segments/internal/rfv"
)

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func render(w io.Writer, title string, header []string, rows [][]string) {
	fmt.Fprintf(w, "\n%s\n", title)
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.AppendBulk(rows)
	t.Render()
}

func customerRows(cs []entity.CustomerRFV) [][]string {
	out := make([][]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, []string{
			c.CustomerID,
			strconv.Itoa(c.Recency),
			strconv.Itoa(c.Frequency),
			fmtFloat(c.Value),
			string(c.RGrade) + string(c.FGrade) + string(c.VGrade),
			c.Action(),
		})
	}
	return out
}

// printViews prints the same views the HTTP preview returns.
func printViews(w io.Writer, res *rfv.Result, rows int, topScore string, top int) {
	p := res.BuildPreview(rows, topScore, top)
	fmt.Fprintf(w, "reference date: %s  records: %d  customers: %d\n", p.ReferenceDate, p.RecordCount, p.CustomerCount)

	var rec [][]string
	for _, r := range p.Recency {
		rec = append(rec, []string{r.CustomerID, r.LastPurchase.Format(time.DateOnly), strconv.Itoa(r.Recency)})
	}
	render(w, "Recency", []string{"customer_id", "last_purchase", "recency"}, rec)

	var freq [][]string
	for _, r := range p.Frequency {
		freq = append(freq, []string{r.CustomerID, strconv.Itoa(r.Frequency)})
	}
	render(w, "Frequency", []string{"customer_id", "frequency"}, freq)

	var val [][]string
	for _, r := range p.Value {
		val = append(val, []string{r.CustomerID, fmtFloat(r.Value)})
	}
	render(w, "Value", []string{"customer_id", "value"}, val)

	q := p.Quartiles
	render(w, "Quartiles", []string{"measure", "q25", "q50", "q75"}, [][]string{
		{"recency", fmtFloat(q.Recency.Q25), fmtFloat(q.Recency.Q50), fmtFloat(q.Recency.Q75)},
		{"frequency", fmtFloat(q.Frequency.Q25), fmtFloat(q.Frequency.Q50), fmtFloat(q.Frequency.Q75)},
		{"value", fmtFloat(q.Value.Q25), fmtFloat(q.Value.Q50), fmtFloat(q.Value.Q75)},
	})

	header := []string{"customer_id", "recency", "frequency", "value", "rfv_score", "suggested_action"}
	render(w, "RFV", header, customerRows(p.Customers))

	var counts [][]string
	for _, sc := range p.ScoreCounts {
		counts = append(counts, []string{sc.Score, strconv.Itoa(sc.Count)})
	}
	render(w, "Customers per score", []string{"rfv_score", "customers"}, counts)

	render(w, fmt.Sprintf("Top %d %s customers", top, p.TopScore), header, customerRows(p.TopCustomers))

	var dist [][]string
	for _, ac := range p.ActionDistribution {
		label := "(no suggestion)"
		if ac.Action != nil {
			label = *ac.Action
		}
		dist = append(dist, []string{label, strconv.Itoa(ac.Count)})
	}
	render(w, "Suggested actions", []string{"suggested_action", "customers"}, dist)
}
