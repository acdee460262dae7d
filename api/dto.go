/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (pricing.Quote, contract.Contract) from the wire format:
  - Money is sent as strings with two decimals ("32.40"), never floats
  - The drawn signature is never echoed back
  - Dutch display strings are precomputed for the wizard

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Pricing:
    QuoteRequest, QuoteDTO, LineItemDTO

  IBAN:
    IBANCheckRequest, IBANCheckDTO

  Contracts:
    contract.Submission (request), ContractDTO, SepaDTO

  Admin:
    SyncRunDTO, HealthDTO

VALIDATION:
  Submissions are validated in the contract package with struct tags.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - contract/types.go: Submission and Customer JSON shape
*/
package api

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/iban"
	"github.com/aircare/contract-engine/pricing"
)

// =============================================================================
// PRICING
// =============================================================================

// QuoteRequest is the live price preview input.
type QuoteRequest struct {
	ContractType     pricing.Tier             `json:"contract_type"`
	OutdoorUnits     int                      `json:"outdoor_units"`
	IndoorUnits      int                      `json:"indoor_units"`
	PaymentFrequency pricing.PaymentFrequency `json:"payment_frequency"`
}

// QuoteDTO is the price breakdown shown in the wizard.
type QuoteDTO struct {
	ContractType     pricing.Tier             `json:"contract_type"`
	ContractLabel    string                   `json:"contract_label"`
	PaymentFrequency pricing.PaymentFrequency `json:"payment_frequency"`
	OutdoorUnits     int                      `json:"outdoor_units"`
	IndoorUnits      int                      `json:"indoor_units"`

	WeightedPoints      string `json:"weighted_points"`
	HasQuantityDiscount bool   `json:"has_quantity_discount"`

	BaseAmount       string `json:"base_amount"`
	QuantityDiscount string `json:"quantity_discount"`
	MonthlyPrice     string `json:"monthly_price"`
	YearlyPrice      string `json:"yearly_price"`
	YearlyDiscounted string `json:"yearly_discounted"`
	AnnualDiscount   string `json:"annual_discount"`
	OneTimePrice     string `json:"one_time_price"`
	Total            string `json:"total"`

	// Display strings, e.g. "€32,40 per maand"
	TotalText string `json:"total_text"`
	Period    string `json:"period"`

	Lines []LineItemDTO `json:"lines"`
}

// LineItemDTO is one row of the price breakdown.
type LineItemDTO struct {
	Kind        pricing.LineKind `json:"kind"`
	Description string           `json:"description"`
	Quantity    int              `json:"quantity,omitempty"`
	UnitPrice   string           `json:"unit_price,omitempty"`
	Amount      string           `json:"amount"`
}

// =============================================================================
// IBAN
// =============================================================================

// IBANCheckRequest is the input of the inline IBAN check.
type IBANCheckRequest struct {
	IBAN string `json:"iban"`
}

// IBANCheckDTO reports validity, the grouped display form and, for Dutch
// accounts, the bank name.
type IBANCheckDTO struct {
	Valid     bool   `json:"valid"`
	Formatted string `json:"formatted"`
	BankName  string `json:"bank_name,omitempty"`
}

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractDTO represents a stored contract in API responses.
type ContractDTO struct {
	ID        string            `json:"id"`
	CreatedAt string            `json:"created_at"`
	Customer  contract.Customer `json:"customer"`
	Sepa      *SepaDTO          `json:"sepa,omitempty"`
	Quote     QuoteDTO          `json:"quote"`

	EmailStatus   contract.SyncStatus `json:"email_status"`
	CRMStatus     contract.SyncStatus `json:"crm_status"`
	SyncAttempts  int                 `json:"sync_attempts"`
	LastSyncError string              `json:"last_sync_error,omitempty"`
}

// SepaDTO is the mandate without the signature image.
type SepaDTO struct {
	IBAN          string `json:"iban"`
	BankName      string `json:"bank_name,omitempty"`
	AccountHolder string `json:"account_holder"`
	MandateDate   string `json:"mandate_date"`
	HasSignature  bool   `json:"has_signature"`
}

// =============================================================================
// ADMIN
// =============================================================================

// SyncRunDTO describes a delivery retry round.
type SyncRunDTO struct {
	Delivered int    `json:"delivered"`
	RanAt     string `json:"ran_at,omitempty"`
	Error     string `json:"error,omitempty"`
	NextRunAt string `json:"next_run_at,omitempty"`
}

// HealthDTO is returned by GET /api/health.
type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toQuoteDTO(q pricing.Quote) QuoteDTO {
	return QuoteDTO{
		ContractType:        q.Tier,
		ContractLabel:       q.Tier.Label(),
		PaymentFrequency:    q.Frequency,
		OutdoorUnits:        q.Equipment.Outdoor,
		IndoorUnits:         q.Equipment.Indoor,
		WeightedPoints:      q.WeightedPoints.String(),
		HasQuantityDiscount: q.HasQuantityBonus,
		BaseAmount:          money(q.BaseAmount),
		QuantityDiscount:    money(q.QuantityDiscount),
		MonthlyPrice:        money(q.MonthlyPrice),
		YearlyPrice:         money(q.YearlyPrice),
		YearlyDiscounted:    money(q.YearlyDiscounted),
		AnnualDiscount:      money(q.AnnualDiscount),
		OneTimePrice:        money(q.OneTimePrice),
		Total:               money(q.Total),
		TotalText:           q.TotalText(),
		Period:              q.Period(),
		Lines: lo.Map(q.Lines, func(l pricing.LineItem, _ int) LineItemDTO {
			dto := LineItemDTO{
				Kind:        l.Kind,
				Description: l.Description,
				Quantity:    l.Quantity,
				Amount:      money(l.Amount),
			}
			if !l.UnitPrice.IsZero() {
				dto.UnitPrice = money(l.UnitPrice)
			}
			return dto
		}),
	}
}

func toContractDTO(c contract.Contract) ContractDTO {
	dto := ContractDTO{
		ID:            c.ID,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
		Customer:      c.Customer,
		Quote:         toQuoteDTO(c.Quote),
		EmailStatus:   c.EmailStatus,
		CRMStatus:     c.CRMStatus,
		SyncAttempts:  c.SyncAttempts,
		LastSyncError: c.LastSyncError,
	}
	if c.Sepa != nil {
		bank, _ := iban.BankName(c.Sepa.IBAN)
		dto.Sepa = &SepaDTO{
			IBAN:          iban.Format(c.Sepa.IBAN),
			BankName:      bank,
			AccountHolder: c.Sepa.AccountHolder,
			MandateDate:   c.Sepa.MandateDate.Format("2006-01-02"),
			HasSignature:  c.Sepa.HasSignature(),
		}
	}
	return dto
}

func toContractDTOs(cs []contract.Contract) []ContractDTO {
	return lo.Map(cs, func(c contract.Contract, _ int) ContractDTO {
		return toContractDTO(c)
	})
}
