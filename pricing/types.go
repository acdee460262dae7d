/*
Package pricing computes maintenance-contract prices and discounts.

PURPOSE:
  Given a contract tier and the customer's equipment (outdoor and indoor
  units), compute the monthly, yearly and one-time prices together with the
  quantity and annual-payment discounts that apply.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tier: None (one-time service), Basic, Premium
  - RateCard: base price per complete unit + rate per extra indoor unit
  - Equipment: outdoor/indoor unit counts and the values derived from them
  - PaymentFrequency: monthly or yearly billing

DESIGN PRINCIPLES:
  1. Precision: all amounts are decimal.Decimal, never float64
  2. Purity: every function is a pure function of its inputs
  3. Explicit rounding: rounding happens at fixed, documented points

DISCOUNT STACKING:
  The quantity discount (10%) is applied to the per-period base amount.
  The annual discount (5%) is applied to the yearly total, which is derived
  from the already quantity-discounted monthly price. The two percentages
  are never summed.

SEE ALSO:
  - pricing.go: Price and discount functions
  - quote.go: Quote aggregate consumed by the API and contract service
  - errors.go: InvalidInputError
*/
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER
// =============================================================================

// Tier is the maintenance contract level chosen by the customer.
// The string values are the wire names used by the wizard frontend.
type Tier string

const (
	TierNone    Tier = "geen"
	TierBasic   Tier = "basis"
	TierPremium Tier = "premium"
)

// Tiers lists all known tiers in display order.
var Tiers = []Tier{TierNone, TierBasic, TierPremium}

// ParseTier converts a wire name into a Tier.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierNone, TierBasic, TierPremium:
		return t, nil
	}
	return "", &InvalidInputError{Field: "tier", Value: s, Reason: "unknown contract tier"}
}

// IsRecurring reports whether the tier is billed per period.
// TierNone is a one-time service and is never billed monthly.
func (t Tier) IsRecurring() bool { return t == TierBasic || t == TierPremium }

// Label returns the Dutch display name shown on summaries and emails.
func (t Tier) Label() string {
	switch t {
	case TierNone:
		return "Geen contract"
	case TierBasic:
		return "Basis pakket"
	case TierPremium:
		return "Premium pakket"
	}
	return string(t)
}

// =============================================================================
// RATE CARD
// =============================================================================

// Rate is the price table for a single tier.
// For TierNone the amounts are one-time; for the others they are per month.
type Rate struct {
	BasePrice      decimal.Decimal // per complete (outdoor + indoor) unit
	ExtraIndoorFee decimal.Decimal // per indoor unit without a matching outdoor unit
}

var rateCard = map[Tier]Rate{
	TierNone:    {BasePrice: decimal.NewFromInt(179), ExtraIndoorFee: decimal.RequireFromString("89.50")},
	TierBasic:   {BasePrice: decimal.NewFromInt(11), ExtraIndoorFee: decimal.NewFromInt(7)},
	TierPremium: {BasePrice: decimal.NewFromInt(16), ExtraIndoorFee: decimal.NewFromInt(11)},
}

// RateFor returns the fixed rates for a tier.
func RateFor(t Tier) (Rate, error) {
	r, ok := rateCard[t]
	if !ok {
		return Rate{}, &InvalidInputError{Field: "tier", Value: string(t), Reason: "unknown contract tier"}
	}
	return r, nil
}

// Discount parameters.
var (
	QuantityDiscountRate  = decimal.RequireFromString("0.10")
	AnnualDiscountRate    = decimal.RequireFromString("0.05")
	QuantityDiscountPoint = decimal.NewFromInt(3) // weighted points needed for the quantity discount

	extraUnitWeight = decimal.RequireFromString("0.5")
	monthsPerYear   = decimal.NewFromInt(12)
)

// =============================================================================
// EQUIPMENT
// =============================================================================

// Equipment is the customer's installation: outdoor units and indoor units.
// Both counts must be at least 1.
type Equipment struct {
	Outdoor int
	Indoor  int
}

// NewEquipment validates the unit counts. Counts below 1 are a caller
// contract violation and are rejected, never clamped.
func NewEquipment(outdoor, indoor int) (Equipment, error) {
	if outdoor < 1 {
		return Equipment{}, &InvalidInputError{Field: "outdoor_units", Value: fmt.Sprint(outdoor), Reason: "must be at least 1"}
	}
	if indoor < 1 {
		return Equipment{}, &InvalidInputError{Field: "indoor_units", Value: fmt.Sprint(indoor), Reason: "must be at least 1"}
	}
	return Equipment{Outdoor: outdoor, Indoor: indoor}, nil
}

// CompleteUnits is the number of matched outdoor+indoor pairs.
func (e Equipment) CompleteUnits() int { return min(e.Outdoor, e.Indoor) }

// ExtraIndoorUnits is the number of indoor units beyond the outdoor count
// (multi-split installations).
func (e Equipment) ExtraIndoorUnits() int { return max(0, e.Indoor-e.Outdoor) }

// WeightedPoints counts a complete unit as 1 and an extra indoor unit as 0.5.
func (e Equipment) WeightedPoints() decimal.Decimal {
	return decimal.NewFromInt(int64(e.CompleteUnits())).
		Add(decimal.NewFromInt(int64(e.ExtraIndoorUnits())).Mul(extraUnitWeight))
}

// QualifiesForQuantityDiscount reports whether WeightedPoints reaches the threshold.
func (e Equipment) QualifiesForQuantityDiscount() bool {
	return e.WeightedPoints().GreaterThanOrEqual(QuantityDiscountPoint)
}

// =============================================================================
// PAYMENT FREQUENCY
// =============================================================================

type PaymentFrequency string

const (
	Monthly PaymentFrequency = "maandelijks"
	Yearly  PaymentFrequency = "jaarlijks"
)

// ParsePaymentFrequency converts a wire name into a PaymentFrequency.
func ParsePaymentFrequency(s string) (PaymentFrequency, error) {
	switch f := PaymentFrequency(s); f {
	case Monthly, Yearly:
		return f, nil
	}
	return "", &InvalidInputError{Field: "payment_frequency", Value: s, Reason: "unknown payment frequency"}
}
