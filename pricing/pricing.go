package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// BASE AMOUNT
// =============================================================================

// BaseAmount is the undiscounted per-period amount for a tier:
//
//	completeUnits × BasePrice + extraIndoorUnits × ExtraIndoorFee
//
// For TierNone this uses the one-time rate table.
func BaseAmount(tier Tier, outdoor, indoor int) (decimal.Decimal, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := RateFor(tier)
	if err != nil {
		return decimal.Zero, err
	}
	return baseAmount(rate, eq), nil
}

func baseAmount(rate Rate, eq Equipment) decimal.Decimal {
	complete := decimal.NewFromInt(int64(eq.CompleteUnits()))
	extra := decimal.NewFromInt(int64(eq.ExtraIndoorUnits()))
	return complete.Mul(rate.BasePrice).Add(extra.Mul(rate.ExtraIndoorFee))
}

// afterQuantityDiscount applies the 10% quantity discount when the equipment
// qualifies, rounding half away from zero to the given number of places.
func afterQuantityDiscount(base decimal.Decimal, eq Equipment, places int32) decimal.Decimal {
	if !eq.QualifiesForQuantityDiscount() {
		return base.Round(places)
	}
	return base.Mul(decimal.NewFromInt(1).Sub(QuantityDiscountRate)).Round(places)
}

// =============================================================================
// RECURRING PRICES
// =============================================================================

// MonthlyPrice returns the monthly contract price in euros, rounded to cents.
// TierNone has no monthly price and returns zero.
func MonthlyPrice(tier Tier, outdoor, indoor int) (decimal.Decimal, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := RateFor(tier)
	if err != nil {
		return decimal.Zero, err
	}
	if !tier.IsRecurring() {
		return decimal.Zero, nil
	}
	return afterQuantityDiscount(baseAmount(rate, eq), eq, 2), nil
}

// YearlyPrice converts a monthly price into a yearly total.
// The yearly total is rounded to whole euros BEFORE the annual discount is
// taken off; this intermediate rounding is part of the price contract.
func YearlyPrice(monthly decimal.Decimal, applyAnnualDiscount bool) decimal.Decimal {
	yearly := monthly.Mul(monthsPerYear).Round(0)
	if applyAnnualDiscount {
		return yearly.Sub(AnnualDiscountAmount(yearly))
	}
	return yearly
}

// AnnualDiscountAmount is 5% of the yearly total, rounded to whole euros.
func AnnualDiscountAmount(yearly decimal.Decimal) decimal.Decimal {
	return yearly.Mul(AnnualDiscountRate).Round(0)
}

// =============================================================================
// QUANTITY DISCOUNT
// =============================================================================

// QuantityDiscountAmount is the amount taken off the base amount by the
// quantity discount, or zero when the equipment does not qualify.
// Recurring tiers are rounded to cents, TierNone to whole euros.
func QuantityDiscountAmount(tier Tier, outdoor, indoor int) (decimal.Decimal, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := RateFor(tier)
	if err != nil {
		return decimal.Zero, err
	}
	if !eq.QualifiesForQuantityDiscount() {
		return decimal.Zero, nil
	}
	return baseAmount(rate, eq).Mul(QuantityDiscountRate).Round(placesFor(tier)), nil
}

// WeightedPoints returns completeUnits + 0.5 × extraIndoorUnits.
func WeightedPoints(outdoor, indoor int) (decimal.Decimal, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return decimal.Zero, err
	}
	return eq.WeightedPoints(), nil
}

// QualifiesForQuantityDiscount reports whether the weighted points reach 3.
func QualifiesForQuantityDiscount(outdoor, indoor int) (bool, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return false, err
	}
	return eq.QualifiesForQuantityDiscount(), nil
}

// =============================================================================
// ONE-TIME PRICE
// =============================================================================

// OneTimePrice is the price of a single maintenance visit without a
// contract (TierNone). One-time prices are whole euros.
func OneTimePrice(outdoor, indoor int) (decimal.Decimal, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return decimal.Zero, err
	}
	return afterQuantityDiscount(baseAmount(rateCard[TierNone], eq), eq, 0), nil
}

func placesFor(tier Tier) int32 {
	if tier.IsRecurring() {
		return 2
	}
	return 0
}
