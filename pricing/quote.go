package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the full price breakdown for one tier, installation and payment
// frequency. It is an immutable value recomputed on every request.
type Quote struct {
	Tier      Tier
	Frequency PaymentFrequency
	Equipment Equipment

	WeightedPoints   decimal.Decimal
	HasQuantityBonus bool

	// BaseAmount is per month for recurring tiers and one-time for TierNone.
	BaseAmount       decimal.Decimal
	QuantityDiscount decimal.Decimal

	MonthlyPrice     decimal.Decimal
	YearlyPrice      decimal.Decimal // monthly × 12, rounded, no annual discount
	YearlyDiscounted decimal.Decimal // YearlyPrice minus the annual discount
	AnnualDiscount   decimal.Decimal // only set when billed yearly
	OneTimePrice     decimal.Decimal

	// Total is what the customer pays per billing period (or once for TierNone).
	Total decimal.Decimal

	Lines []LineItem
}

// LineKind classifies a quote line.
type LineKind string

const (
	LineCompleteUnits    LineKind = "complete_units"
	LineExtraIndoorUnits LineKind = "extra_indoor_units"
	LineQuantityDiscount LineKind = "quantity_discount"
	LineAnnualDiscount   LineKind = "annual_discount"
)

// LineItem is one row of the price breakdown. Discount lines carry a
// negative Amount.
type LineItem struct {
	Kind        LineKind
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// NewQuote computes every price the wizard shows for the given selection.
func NewQuote(tier Tier, outdoor, indoor int, freq PaymentFrequency) (Quote, error) {
	eq, err := NewEquipment(outdoor, indoor)
	if err != nil {
		return Quote{}, err
	}
	rate, err := RateFor(tier)
	if err != nil {
		return Quote{}, err
	}
	if _, err := ParsePaymentFrequency(string(freq)); err != nil {
		return Quote{}, err
	}

	monthly, err := MonthlyPrice(tier, outdoor, indoor)
	if err != nil {
		return Quote{}, err
	}
	quantity, err := QuantityDiscountAmount(tier, outdoor, indoor)
	if err != nil {
		return Quote{}, err
	}
	oneTime, err := OneTimePrice(outdoor, indoor)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Tier:             tier,
		Frequency:        freq,
		Equipment:        eq,
		WeightedPoints:   eq.WeightedPoints(),
		HasQuantityBonus: eq.QualifiesForQuantityDiscount(),
		BaseAmount:       baseAmount(rate, eq),
		QuantityDiscount: quantity,
		MonthlyPrice:     monthly,
		YearlyPrice:      YearlyPrice(monthly, false),
		YearlyDiscounted: YearlyPrice(monthly, true),
		AnnualDiscount:   decimal.Zero,
		OneTimePrice:     oneTime,
	}

	switch {
	case !tier.IsRecurring():
		q.Total = oneTime
	case freq == Yearly:
		q.AnnualDiscount = AnnualDiscountAmount(q.YearlyPrice)
		q.Total = q.YearlyPrice.Sub(q.AnnualDiscount)
	default:
		q.Total = monthly
	}

	q.Lines = buildLines(q, rate)
	return q, nil
}

func buildLines(q Quote, rate Rate) []LineItem {
	var lines []LineItem

	if n := q.Equipment.CompleteUnits(); n > 0 {
		lines = append(lines, LineItem{
			Kind:        LineCompleteUnits,
			Description: fmt.Sprintf("%d complete %s", n, plural(n, "unit", "units")),
			Quantity:    n,
			UnitPrice:   rate.BasePrice,
			Amount:      rate.BasePrice.Mul(decimal.NewFromInt(int64(n))),
		})
	}
	if n := q.Equipment.ExtraIndoorUnits(); n > 0 {
		lines = append(lines, LineItem{
			Kind:        LineExtraIndoorUnits,
			Description: fmt.Sprintf("%d extra %s", n, plural(n, "binnendeel", "binnendelen")),
			Quantity:    n,
			UnitPrice:   rate.ExtraIndoorFee,
			Amount:      rate.ExtraIndoorFee.Mul(decimal.NewFromInt(int64(n))),
		})
	}
	if q.QuantityDiscount.IsPositive() {
		lines = append(lines, LineItem{
			Kind:        LineQuantityDiscount,
			Description: "Kwantumkorting (10%)",
			Quantity:    1,
			UnitPrice:   q.QuantityDiscount.Neg(),
			Amount:      q.QuantityDiscount.Neg(),
		})
	}
	if q.AnnualDiscount.IsPositive() {
		lines = append(lines, LineItem{
			Kind:        LineAnnualDiscount,
			Description: "Jaarlijkse korting (5%)",
			Quantity:    1,
			UnitPrice:   q.AnnualDiscount.Neg(),
			Amount:      q.AnnualDiscount.Neg(),
		})
	}
	return lines
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Period names the billing period of Total.
func (q Quote) Period() string {
	switch {
	case !q.Tier.IsRecurring():
		return "eenmalig"
	case q.Frequency == Yearly:
		return "jaar"
	default:
		return "maand"
	}
}

// TotalText renders Total the way it appears on emails and the summary,
// e.g. "€125,- per jaar" or "€32,40 per maand".
func (q Quote) TotalText() string {
	amount := FormatEuro(q.Total)
	switch q.Period() {
	case "eenmalig":
		return amount + " per onderhoudsbeurt"
	case "jaar":
		return amount + " per jaar"
	default:
		return amount + " per maand"
	}
}

// FormatEuro renders an amount in Dutch notation: whole amounts as "€179,-",
// others with a decimal comma ("€32,40").
func FormatEuro(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return "€" + d.StringFixed(0) + ",-"
	}
	return "€" + strings.Replace(d.StringFixed(2), ".", ",", 1)
}
