package pricing_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aircare/contract-engine/pricing"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if amount(want).Equal(got) {
		return
	}
	context := ""
	if len(msgAndArgs) > 0 {
		context = fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	}
	t.Errorf("want %s, got %s %s", want, got.String(), context)
}

// =============================================================================
// MONTHLY PRICE
// =============================================================================

func TestMonthlyPrice_NoneTierIsZero(t *testing.T) {
	for _, units := range [][2]int{{1, 1}, {2, 5}, {4, 1}, {10, 10}} {
		got, err := pricing.MonthlyPrice(pricing.TierNone, units[0], units[1])
		require.NoError(t, err)
		assert.True(t, got.IsZero(), "units %v", units)
	}
}

func TestMonthlyPrice_Table(t *testing.T) {
	tests := []struct {
		name    string
		tier    pricing.Tier
		outdoor int
		indoor  int
		want    string
	}{
		{"basic single unit", pricing.TierBasic, 1, 1, "11"},
		{"premium single unit", pricing.TierPremium, 1, 1, "16"},
		{"basic two extra indoor", pricing.TierBasic, 1, 3, "25"},
		{"basic just under threshold", pricing.TierBasic, 1, 4, "32"},
		{"basic at threshold", pricing.TierBasic, 2, 4, "32.40"},
		{"basic three complete units", pricing.TierBasic, 3, 3, "29.70"},
		{"premium extra indoor uses premium rate", pricing.TierPremium, 1, 2, "27"},
		{"premium at threshold", pricing.TierPremium, 2, 4, "48.60"},
		{"more outdoor than indoor", pricing.TierBasic, 3, 1, "11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricing.MonthlyPrice(tt.tier, tt.outdoor, tt.indoor)
			require.NoError(t, err)
			assertAmount(t, tt.want, got)
		})
	}
}

func TestMonthlyPrice_RejectsUnitCountsBelowOne(t *testing.T) {
	// GIVEN: A caller that skipped form validation
	// WHEN: Pricing zero or negative unit counts
	// THEN: The engine rejects instead of clamping

	cases := [][2]int{{0, 1}, {1, 0}, {-1, 2}, {0, 0}}
	for _, c := range cases {
		_, err := pricing.MonthlyPrice(pricing.TierBasic, c[0], c[1])
		require.Error(t, err, "units %v", c)
		assert.ErrorIs(t, err, pricing.ErrInvalidInput)

		var inv *pricing.InvalidInputError
		assert.ErrorAs(t, err, &inv)
		assert.True(t, pricing.IsClientError(err))
	}

	_, err := pricing.MonthlyPrice(pricing.TierNone, 0, 1)
	assert.ErrorIs(t, err, pricing.ErrInvalidInput, "none tier still validates counts")
}

func TestMonthlyPrice_UnknownTier(t *testing.T) {
	_, err := pricing.MonthlyPrice(pricing.Tier("gold"), 1, 1)
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

// =============================================================================
// YEARLY PRICE / ANNUAL DISCOUNT
// =============================================================================

func TestYearlyPrice(t *testing.T) {
	assertAmount(t, "132", pricing.YearlyPrice(amount("11"), false))
	assertAmount(t, "125", pricing.YearlyPrice(amount("11"), true))
}

func TestYearlyPrice_RoundsBeforeAnnualDiscount(t *testing.T) {
	// GIVEN: A quantity-discounted monthly price with cents (32.40)
	// WHEN: Converting to a yearly total
	// THEN: 388.80 is rounded to 389 first, then 5% (19.45 -> 19) comes off

	assertAmount(t, "389", pricing.YearlyPrice(amount("32.40"), false))
	assertAmount(t, "370", pricing.YearlyPrice(amount("32.40"), true))
}

func TestAnnualDiscountAmount(t *testing.T) {
	assertAmount(t, "7", pricing.AnnualDiscountAmount(amount("132")))
	assertAmount(t, "10", pricing.AnnualDiscountAmount(amount("190"))) // 9.5 rounds away from zero
	assertAmount(t, "0", pricing.AnnualDiscountAmount(amount("0")))
}

func TestDiscountsAreStackedNotSummed(t *testing.T) {
	// 36/mo base, 10% quantity then 5% annual on the yearly total.
	monthly, err := pricing.MonthlyPrice(pricing.TierBasic, 2, 4)
	require.NoError(t, err)

	stacked := pricing.YearlyPrice(monthly, true)
	summed := amount("36").Mul(amount("12")).Mul(amount("0.85")).Round(0)

	assertAmount(t, "370", stacked)
	assert.False(t, stacked.Equal(summed), "15%% off would give %s", summed)
}

// =============================================================================
// QUANTITY DISCOUNT
// =============================================================================

func TestWeightedPoints(t *testing.T) {
	got, err := pricing.WeightedPoints(1, 4)
	require.NoError(t, err)
	assertAmount(t, "2.5", got)

	got, err = pricing.WeightedPoints(2, 4)
	require.NoError(t, err)
	assertAmount(t, "3", got)

	got, err = pricing.WeightedPoints(5, 2)
	require.NoError(t, err)
	assertAmount(t, "2", got)
}

func TestQualifiesForQuantityDiscount_MatchesFormula(t *testing.T) {
	for o := 1; o <= 6; o++ {
		for i := 1; i <= 8; i++ {
			points := float64(min(o, i)) + 0.5*float64(max(0, i-o))
			got, err := pricing.QualifiesForQuantityDiscount(o, i)
			require.NoError(t, err)
			assert.Equal(t, points >= 3, got, "outdoor=%d indoor=%d", o, i)
		}
	}
}

func TestQuantityDiscountAmount(t *testing.T) {
	tests := []struct {
		name    string
		tier    pricing.Tier
		outdoor int
		indoor  int
		want    string
	}{
		{"not eligible", pricing.TierBasic, 1, 4, "0"},
		{"basic eligible", pricing.TierBasic, 2, 4, "3.60"},
		{"premium eligible", pricing.TierPremium, 3, 3, "4.80"},
		{"none uses one-time rates", pricing.TierNone, 3, 3, "54"},
		{"none with half-euro base", pricing.TierNone, 1, 6, "63"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricing.QuantityDiscountAmount(tt.tier, tt.outdoor, tt.indoor)
			require.NoError(t, err)
			assertAmount(t, tt.want, got)
		})
	}
}

func TestQuantityDiscount_MonthlyPlusDiscountEqualsBase(t *testing.T) {
	for _, tier := range []pricing.Tier{pricing.TierBasic, pricing.TierPremium} {
		for o := 1; o <= 4; o++ {
			for i := 1; i <= 6; i++ {
				base, err := pricing.BaseAmount(tier, o, i)
				require.NoError(t, err)
				monthly, err := pricing.MonthlyPrice(tier, o, i)
				require.NoError(t, err)
				discount, err := pricing.QuantityDiscountAmount(tier, o, i)
				require.NoError(t, err)
				assertAmount(t, base.String(), monthly.Add(discount), "tier=%s o=%d i=%d", tier, o, i)
			}
		}
	}
}

// =============================================================================
// ONE-TIME PRICE
// =============================================================================

func TestOneTimePrice(t *testing.T) {
	tests := []struct {
		outdoor int
		indoor  int
		want    string
	}{
		{1, 1, "179"},
		{1, 2, "269"}, // 268.5 rounds half away from zero
		{2, 2, "358"},
		{1, 4, "448"}, // 447.5, weighted 2.5: no discount
		{3, 3, "483"}, // 537 × 0.9 = 483.3
		{1, 5, "483"}, // weighted 1 + 2 = 3: 537 × 0.9
		{1, 6, "564"}, // 626.5 × 0.9 = 563.85
	}
	for _, tt := range tests {
		got, err := pricing.OneTimePrice(tt.outdoor, tt.indoor)
		require.NoError(t, err)
		assertAmount(t, tt.want, got, "outdoor=%d indoor=%d", tt.outdoor, tt.indoor)
	}
}

func TestOneTimePrice_RejectsInvalidCounts(t *testing.T) {
	_, err := pricing.OneTimePrice(0, 1)
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestPricingIsIdempotent(t *testing.T) {
	for _, tier := range pricing.Tiers {
		a, errA := pricing.MonthlyPrice(tier, 2, 5)
		b, errB := pricing.MonthlyPrice(tier, 2, 5)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a.String(), b.String())

		qa, err := pricing.NewQuote(tier, 2, 5, pricing.Yearly)
		require.NoError(t, err)
		qb, err := pricing.NewQuote(tier, 2, 5, pricing.Yearly)
		require.NoError(t, err)
		assert.Equal(t, qa, qb)
	}
}

func TestParseTierAndFrequency(t *testing.T) {
	tier, err := pricing.ParseTier("premium")
	require.NoError(t, err)
	assert.Equal(t, pricing.TierPremium, tier)

	_, err = pricing.ParseTier("PREMIUM")
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)

	freq, err := pricing.ParsePaymentFrequency("jaarlijks")
	require.NoError(t, err)
	assert.Equal(t, pricing.Yearly, freq)

	_, err = pricing.ParsePaymentFrequency("weekly")
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}
