package subscriptions

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"fintrack/internal/core"
)

var candidateNamespace = uuid.MustParse("0b8e4f3a-2c61-5d7e-8f94-a1b2c3d4e5f6")

// DetectOptions tunes Detect. Zero values use the defaults.
type DetectOptions struct {
	MinOccurrences int
	// GapTolerance is how many days a gap may differ from the median and still count as on-rhythm.
	GapTolerance int
}

const (
	defaultMinOccurrences = 3
	defaultGapTolerance   = 3
)

// Detect groups expenses by merchant and currency and reports the groups that repeat on a
// weekly or monthly rhythm. Results are ordered by confidence, highest first.
func Detect(txs []core.Transaction, opts DetectOptions) []Candidate {
	if opts.MinOccurrences <= 0 {
		opts.MinOccurrences = defaultMinOccurrences
	}
	if opts.GapTolerance <= 0 {
		opts.GapTolerance = defaultGapTolerance
	}

	type groupKey struct{ user, merchant, currency string }
	groups := make(map[groupKey][]core.Transaction)
	display := make(map[groupKey]string)
	for _, tx := range txs {
		merchant := strings.TrimSpace(tx.Merchant)
		if tx.Kind != core.KindExpense || merchant == "" || tx.Date.IsEmpty() {
			continue
		}
		k := groupKey{tx.UserID, strings.ToLower(merchant), strings.ToUpper(tx.Currency)}
		groups[k] = append(groups[k], tx)
		if _, ok := display[k]; !ok {
			display[k] = merchant
		}
	}

	var out []Candidate
	for k, group := range groups {
		if len(group) < opts.MinOccurrences {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

		amounts := make([]float64, len(group))
		for i, tx := range group {
			amounts[i] = float64(tx.AmountCents)
		}
		gaps := make([]float64, 0, len(group)-1)
		for i := 1; i < len(group); i++ {
			gaps = append(gaps, group[i].Date.Sub(group[i-1].Date.Time).Hours()/24)
		}
		sortedGaps := slices.Clone(gaps)
		slices.Sort(sortedGaps)
		median := stat.Quantile(0.5, stat.Empirical, sortedGaps, nil)

		interval := classify(median)
		if interval == IntervalUnknown {
			continue
		}

		onRhythm := 0
		for _, g := range gaps {
			if math.Abs(g-median) <= float64(opts.GapTolerance) {
				onRhythm++
			}
		}
		mean, std := stat.MeanStdDev(amounts, nil)
		stability := 1.0
		if mean > 0 && len(amounts) > 1 {
			stability = math.Max(0, 1-std/mean)
		}
		confidence := 0.6*float64(onRhythm)/float64(len(gaps)) + 0.4*stability

		last := group[len(group)-1].Date
		out = append(out, Candidate{
			ID:             uuid.NewSHA1(candidateNamespace, []byte(k.user+"|"+k.merchant+"|"+k.currency)).String(),
			UserID:         k.user,
			Merchant:       display[k],
			Currency:       k.currency,
			AvgAmountCents: int64(math.Round(mean)),
			Interval:       interval,
			Occurrences:    len(group),
			LastDate:       last,
			NextDueDate:    step(last, interval),
			Confidence:     math.Round(confidence*100) / 100,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Merchant < out[j].Merchant
	})
	return out
}

func classify(medianGapDays float64) Interval {
	switch {
	case medianGapDays >= 5 && medianGapDays <= 9:
		return IntervalWeekly
	case medianGapDays >= 26 && medianGapDays <= 35:
		return IntervalMonthly
	default:
		return IntervalUnknown
	}
}
