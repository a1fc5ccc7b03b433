package rfv

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

var day0 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func onDay(d int) time.Time {
	return day0.AddDate(0, 0, d-1)
}

func purchase(customer, code string, d int, value float64) entity.Purchase {
	return entity.Purchase{CustomerID: customer, PurchaseCode: code, PurchaseDate: onDay(d), TotalValue: value}
}

func byID(customers []entity.CustomerRFV) map[string]entity.CustomerRFV {
	out := make(map[string]entity.CustomerRFV, len(customers))
	for _, c := range customers {
		out[c.CustomerID] = c
	}
	return out
}

// linearQuartile mirrors the p*(n-1) interpolation rule on a sorted slice.
func linearQuartile(sorted []float64, p float64) float64 {
	h := p * float64(len(sorted)-1)
	lo := int(h)
	if lo == len(sorted)-1 {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func TestRun_ThreeCustomerScenario(t *testing.T) {
	ledger := []entity.Purchase{
		purchase("X", "p1", 1, 100),
		purchase("Y", "p2", 1, 100),
		purchase("Y", "p3", 3, 100),
		purchase("Y", "p4", 5, 100),
		purchase("Y", "p5", 8, 100),
		purchase("Y", "p6", 10, 100),
		purchase("Z", "p7", 10, 50),
	}

	res, err := NewPipeline(nil, nil).Run(context.Background(), ledger)
	require.NoError(t, err)
	require.Len(t, res.Customers, 3)
	assert.Equal(t, onDay(10), res.ReferenceDate)

	got := byID(res.Customers)
	assert.Equal(t, 9, got["X"].Recency)
	assert.Equal(t, 0, got["Y"].Recency)
	assert.Equal(t, 0, got["Z"].Recency)
	assert.Equal(t, 1, got["X"].Frequency)
	assert.Equal(t, 5, got["Y"].Frequency)
	assert.Equal(t, 1, got["Z"].Frequency)
	assert.InDelta(t, 100, got["X"].Value, 1e-9)
	assert.InDelta(t, 500, got["Y"].Value, 1e-9)
	assert.InDelta(t, 50, got["Z"].Value, 1e-9)

	rec := []float64{0, 0, 9}
	freq := []float64{1, 1, 5}
	val := []float64{50, 100, 500}
	want := entity.Quartiles{
		Recency:   entity.QuartilePoints{Q25: linearQuartile(rec, .25), Q50: linearQuartile(rec, .5), Q75: linearQuartile(rec, .75)},
		Frequency: entity.QuartilePoints{Q25: linearQuartile(freq, .25), Q50: linearQuartile(freq, .5), Q75: linearQuartile(freq, .75)},
		Value:     entity.QuartilePoints{Q25: linearQuartile(val, .25), Q50: linearQuartile(val, .5), Q75: linearQuartile(val, .75)},
	}
	assert.Equal(t, want, res.Quartiles)
	assert.Equal(t, entity.QuartilePoints{Q25: 0, Q50: 0, Q75: 4.5}, res.Quartiles.Recency)
	assert.Equal(t, entity.QuartilePoints{Q25: 1, Q50: 1, Q75: 3}, res.Quartiles.Frequency)
	assert.Equal(t, entity.QuartilePoints{Q25: 75, Q50: 100, Q75: 300}, res.Quartiles.Value)

	assert.Equal(t, "DDC", got["X"].RFVScore)
	assert.Equal(t, "AAA", got["Y"].RFVScore)
	assert.Equal(t, "ADD", got["Z"].RFVScore)

	require.NotNil(t, got["Y"].SuggestedAction)
	assert.Equal(t, DefaultActions()["AAA"], *got["Y"].SuggestedAction)
	assert.Nil(t, got["X"].SuggestedAction)
	assert.Nil(t, got["Z"].SuggestedAction)
}

func TestRun_BoundaryTiesResolveToLowerBucket(t *testing.T) {
	// Five customers: recency 0,10,20,30,40 and frequency 1..5, ten per purchase.
	// With n=5 every quartile lands exactly on an order statistic.
	var ledger []entity.Purchase
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		last := 41 - 10*i
		for k := 0; k <= i; k++ {
			ledger = append(ledger, purchase(id, fmt.Sprintf("%s-%d", id, k), last-k, 10))
		}
	}

	res, err := NewPipeline(nil, nil).Run(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, entity.QuartilePoints{Q25: 10, Q50: 20, Q75: 30}, res.Quartiles.Recency)
	assert.Equal(t, entity.QuartilePoints{Q25: 2, Q50: 3, Q75: 4}, res.Quartiles.Frequency)
	assert.Equal(t, entity.QuartilePoints{Q25: 20, Q50: 30, Q75: 40}, res.Quartiles.Value)

	got := byID(res.Customers)
	// recency == Q25 is A, frequency/value == Q25 is D
	assert.Equal(t, 10, got["c1"].Recency)
	assert.Equal(t, constants.GradeA, got["c1"].RGrade)
	assert.Equal(t, constants.GradeD, got["c1"].FGrade)
	assert.Equal(t, constants.GradeD, got["c1"].VGrade)

	assert.Equal(t, "ADD", got["c0"].RFVScore)
	assert.Equal(t, "ADD", got["c1"].RFVScore)
	assert.Equal(t, "BCC", got["c2"].RFVScore)
	assert.Equal(t, "CBB", got["c3"].RFVScore)
	assert.Equal(t, "DAA", got["c4"].RFVScore)

	assert.Nil(t, got["c2"].SuggestedAction)
	require.NotNil(t, got["c4"].SuggestedAction)
	assert.Equal(t, DefaultActions()["DAA"], *got["c4"].SuggestedAction)
}

func randomLedger(seed int64, n int) []entity.Purchase {
	r := rand.New(rand.NewSource(seed))
	out := make([]entity.Purchase, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.Purchase{
			CustomerID:   fmt.Sprintf("%d", r.Intn(40)+1),
			PurchaseCode: fmt.Sprintf("P%04d", r.Intn(n/2+1)),
			PurchaseDate: day0.AddDate(0, 0, r.Intn(365)),
			TotalValue:   float64(r.Intn(100000))/100 - 50,
		})
	}
	return out
}

func TestRun_Properties(t *testing.T) {
	ledger := randomLedger(42, 500)

	p := NewPipeline(nil, nil)
	res, err := p.Run(context.Background(), ledger)
	require.NoError(t, err)

	var maxDate time.Time
	wantTotal := 0.0
	for _, rec := range ledger {
		if rec.PurchaseDate.After(maxDate) {
			maxDate = rec.PurchaseDate
		}
		wantTotal += rec.TotalValue
	}
	latest := make(map[string]time.Time)
	for _, rec := range ledger {
		if rec.PurchaseDate.After(latest[rec.CustomerID]) {
			latest[rec.CustomerID] = rec.PurchaseDate
		}
	}

	freqSum := 0
	valSum := 0.0
	for _, c := range res.Customers {
		assert.GreaterOrEqual(t, c.Recency, 0)
		assert.Equal(t, latest[c.CustomerID].Equal(maxDate), c.Recency == 0, "customer %s", c.CustomerID)
		assert.GreaterOrEqual(t, c.Frequency, 1)
		assert.True(t, c.RGrade.Valid())
		assert.True(t, c.FGrade.Valid())
		assert.True(t, c.VGrade.Valid())
		assert.Len(t, c.RFVScore, 3)
		freqSum += c.Frequency
		valSum += c.Value
	}
	assert.Equal(t, len(ledger), freqSum)
	assert.InDelta(t, wantTotal, valSum, 1e-6)

	again, err := p.Run(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, res.Customers, again.Customers)
	assert.Equal(t, res.Quartiles, again.Quartiles)
}

func TestRun_MaxDateCustomersHaveZeroRecency(t *testing.T) {
	ledger := []entity.Purchase{
		purchase("a", "1", 3, 10),
		purchase("b", "2", 7, 10),
		purchase("c", "3", 7, 10),
		purchase("d", "4", 6, 10),
	}
	res, err := NewPipeline(nil, nil).Run(context.Background(), ledger)
	require.NoError(t, err)

	var zero []string
	for _, c := range res.Customers {
		if c.Recency == 0 {
			zero = append(zero, c.CustomerID)
		}
	}
	assert.Equal(t, []string{"b", "c"}, zero)
}

func TestRun_RecencyTruncatesPartialDays(t *testing.T) {
	ledger := []entity.Purchase{
		{CustomerID: "a", PurchaseCode: "1", PurchaseDate: day0, TotalValue: 1},
		{CustomerID: "b", PurchaseCode: "2", PurchaseDate: day0.Add(47 * time.Hour), TotalValue: 1},
	}
	res, err := NewPipeline(nil, nil).Run(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 1, byID(res.Customers)["a"].Recency)
}

func TestRun_DuplicatePurchaseCodesAreCounted(t *testing.T) {
	ledger := []entity.Purchase{
		purchase("a", "same", 1, 10),
		purchase("a", "same", 2, 10),
		purchase("b", "other", 2, -5),
	}
	res, err := NewPipeline(nil, nil).Run(context.Background(), ledger)
	require.NoError(t, err)
	got := byID(res.Customers)
	assert.Equal(t, 2, got["a"].Frequency)
	assert.InDelta(t, -5, got["b"].Value, 1e-9)
}

func TestRun_SingleCustomer(t *testing.T) {
	res, err := NewPipeline(nil, nil).Run(context.Background(), []entity.Purchase{purchase("only", "1", 1, 42)})
	require.NoError(t, err)
	assert.Equal(t, entity.QuartilePoints{Q25: 42, Q50: 42, Q75: 42}, res.Quartiles.Value)
	assert.Equal(t, entity.QuartilePoints{Q25: 1, Q50: 1, Q75: 1}, res.Quartiles.Frequency)
	// every measure sits on Q25: recency A, frequency and value D
	assert.Equal(t, "ADD", res.Customers[0].RFVScore)
}

func TestRun_EmptyInput(t *testing.T) {
	ctx := common.WithSource(context.Background(), "ledger.csv")
	res, err := NewPipeline(nil, nil).Run(ctx, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, common.ErrEmptyInput))

	var empty *common.EmptyInputError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "ledger.csv", empty.Source)
}

func TestRun_UsesRunIDFromContext(t *testing.T) {
	const id = "0f8b3c0e-7d7a-4c47-9f5e-2d7f3d3b9a11"
	ctx := common.WithRunID(context.Background(), id)
	res, err := NewPipeline(nil, nil).Run(ctx, []entity.Purchase{purchase("a", "1", 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, id, res.RunID.String())
}

func TestRun_CustomActionTable(t *testing.T) {
	actions := ActionTable{"ADD": "Nudge with a second-purchase offer."}
	res, err := NewPipeline(nil, actions).Run(context.Background(), []entity.Purchase{purchase("a", "1", 1, 1)})
	require.NoError(t, err)
	require.NotNil(t, res.Customers[0].SuggestedAction)
	assert.Equal(t, "Nudge with a second-purchase offer.", res.Customers[0].Action())
}

func TestJoin_KeyMismatchIsInternalFault(t *testing.T) {
	rec := []RecencyRow{{CustomerID: "a"}, {CustomerID: "b"}}
	freq := []FrequencyRow{{CustomerID: "a", Frequency: 1}}
	val := []ValueRow{{CustomerID: "a", Value: 1}, {CustomerID: "b", Value: 2}, {CustomerID: "c", Value: 3}}

	_, err := Join(rec, freq, val)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInternalConsistency))
	assert.False(t, errors.Is(err, common.ErrMalformedInput))
	assert.False(t, errors.Is(err, common.ErrEmptyInput))

	var fault *common.InternalConsistencyFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, []string{"b", "c"}, fault.Missing)
}

func TestSortCustomerIDs(t *testing.T) {
	numeric := []string{"10", "2", "1"}
	SortCustomerIDs(numeric)
	assert.Equal(t, []string{"1", "2", "10"}, numeric)

	mixed := []string{"b", "10", "a", "2"}
	SortCustomerIDs(mixed)
	assert.Equal(t, []string{"10", "2", "a", "b"}, mixed)
}
