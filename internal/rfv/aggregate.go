package rfv

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

const day = 24 * time.Hour

// RecencyRow is one row of the recency table.
type RecencyRow struct {
	CustomerID   string    `json:"customer_id"`
	LastPurchase time.Time `json:"last_purchase"`
	Recency      int       `json:"recency"`
}

// FrequencyRow is one row of the frequency table.
type FrequencyRow struct {
	CustomerID string `json:"customer_id"`
	Frequency  int    `json:"frequency"`
}

// ValueRow is one row of the value table.
type ValueRow struct {
	CustomerID string  `json:"customer_id"`
	Value      float64 `json:"value"`
}

// ReferenceDate returns the latest purchase date of the whole ledger.
func ReferenceDate(purchases []entity.Purchase) (time.Time, error) {
	if len(purchases) == 0 {
		return time.Time{}, &common.EmptyInputError{}
	}
	max := purchases[0].PurchaseDate
	for _, p := range purchases[1:] {
		if p.PurchaseDate.After(max) {
			max = p.PurchaseDate
		}
	}
	return max, nil
}

// RecencyDays is the whole number of days from last to ref, truncated.
func RecencyDays(ref, last time.Time) int {
	return int(ref.Sub(last) / day)
}

// Recency groups purchases by customer and measures the days between each
// customer's latest purchase and ref.
func Recency(purchases []entity.Purchase, ref time.Time) []RecencyRow {
	last := make(map[string]time.Time)
	for _, p := range purchases {
		if cur, ok := last[p.CustomerID]; !ok || p.PurchaseDate.After(cur) {
			last[p.CustomerID] = p.PurchaseDate
		}
	}
	ids := make([]string, 0, len(last))
	for id := range last {
		ids = append(ids, id)
	}
	SortCustomerIDs(ids)

	rows := make([]RecencyRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, RecencyRow{
			CustomerID:   id,
			LastPurchase: last[id],
			Recency:      RecencyDays(ref, last[id]),
		})
	}
	return rows
}

// Frequency counts purchase rows per customer. Duplicate purchase codes are
// counted as separate purchases.
func Frequency(purchases []entity.Purchase) []FrequencyRow {
	counts := make(map[string]int)
	for _, p := range purchases {
		counts[p.CustomerID]++
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	SortCustomerIDs(ids)

	rows := make([]FrequencyRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, FrequencyRow{CustomerID: id, Frequency: counts[id]})
	}
	return rows
}

// Value sums total_value per customer. Negative amounts are summed as-is.
func Value(purchases []entity.Purchase) []ValueRow {
	sums := make(map[string]float64)
	for _, p := range purchases {
		sums[p.CustomerID] += p.TotalValue
	}
	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	SortCustomerIDs(ids)

	rows := make([]ValueRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, ValueRow{CustomerID: id, Value: sums[id]})
	}
	return rows
}

// aggregates holds the three per-customer tables of one run.
type aggregates struct {
	recency   []RecencyRow
	frequency []FrequencyRow
	value     []ValueRow
}

// aggregate computes recency, frequency and value concurrently. The input
// slice is only read.
func aggregate(ctx context.Context, purchases []entity.Purchase, ref time.Time) (aggregates, error) {
	var out aggregates
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.recency = Recency(purchases, ref)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.frequency = Frequency(purchases)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.value = Value(purchases)
		return nil
	})
	if err := g.Wait(); err != nil {
		return aggregates{}, err
	}
	return out, nil
}

// Join inner-joins the three tables on customer id, keeping the recency
// table's order. Any key present in one table but not in another yields an
// InternalConsistencyFault.
func Join(rec []RecencyRow, freq []FrequencyRow, val []ValueRow) ([]entity.CustomerRFV, error) {
	freqByID := make(map[string]int, len(freq))
	for _, f := range freq {
		freqByID[f.CustomerID] = f.Frequency
	}
	valByID := make(map[string]float64, len(val))
	for _, v := range val {
		valByID[v.CustomerID] = v.Value
	}

	var missing []string
	seen := make(map[string]struct{}, len(rec))
	out := make([]entity.CustomerRFV, 0, len(rec))
	for _, r := range rec {
		seen[r.CustomerID] = struct{}{}
		f, okF := freqByID[r.CustomerID]
		v, okV := valByID[r.CustomerID]
		if !okF || !okV {
			missing = append(missing, r.CustomerID)
			continue
		}
		out = append(out, entity.CustomerRFV{
			CustomerID: r.CustomerID,
			Recency:    r.Recency,
			Frequency:  f,
			Value:      v,
		})
	}
	for id := range freqByID {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range valByID {
		if _, ok := seen[id]; !ok {
			if _, dup := freqByID[id]; !dup {
				missing = append(missing, id)
			}
		}
	}
	if len(missing) > 0 {
		SortCustomerIDs(missing)
		return nil, &common.InternalConsistencyFault{Missing: missing}
	}
	return out, nil
}

// SortCustomerIDs orders ids the way a grouping over the id column does:
// numerically when every id is a number, lexically otherwise.
func SortCustomerIDs(ids []string) {
	nums := make(map[string]float64, len(ids))
	numeric := true
	for _, id := range ids {
		n, err := strconv.ParseFloat(id, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			numeric = false
			break
		}
		nums[id] = n
	}
	if numeric {
		sort.SliceStable(ids, func(i, j int) bool {
			if nums[ids[i]] != nums[ids[j]] {
				return nums[ids[i]] < nums[ids[j]]
			}
			return ids[i] < ids[j]
		})
		return
	}
	sort.Strings(ids)
}
