/*
Package contract handles maintenance-contract submissions.

PURPOSE:
  Takes the data collected by the wizard (customer, equipment, tier, payment
  frequency and, for paid tiers, a SEPA direct-debit mandate), validates it,
  prices it with the pricing engine, persists it and fans it out to the
  confirmation email and the CRM.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: contact details + equipment + chosen tier and frequency
  - Sepa: direct-debit mandate, only for recurring tiers
  - Submission: what the wizard posts
  - Contract: the persisted record, with a quote snapshot and sync status

DELIVERY POLICY:
  Email and CRM delivery are best-effort. A failed delivery is recorded on
  the contract (SyncFailed) and retried later; it never fails the submission.

SEE ALSO:
  - service.go: Submit / Quote / RetryFailedSyncs
  - validate.go: Submission validation rules
  - store.go: Persistence interface
*/
package contract

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aircare/contract-engine/pricing"
)

// =============================================================================
// SUBMISSION
// =============================================================================

// Customer is the contact and installation data entered in the wizard.
type Customer struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,min=10,max=20"`
	Address    string `json:"address" validate:"required,max=200"`
	PostalCode string `json:"postal_code" validate:"required,postcode_nl"`
	City       string `json:"city" validate:"required,max=100"`

	OutdoorUnits int                      `json:"outdoor_units" validate:"min=1,max=50"`
	IndoorUnits  int                      `json:"indoor_units" validate:"min=1,max=50"`
	Tier         pricing.Tier             `json:"contract_type" validate:"required,oneof=geen basis premium"`
	Frequency    pricing.PaymentFrequency `json:"payment_frequency" validate:"required,oneof=maandelijks jaarlijks"`

	// Optional references for existing customers.
	CustomerNumber    string `json:"customer_number,omitempty" validate:"max=50"`
	LastQuoteNumber   string `json:"last_quote_number,omitempty" validate:"max=50"`
	LastInvoiceNumber string `json:"last_invoice_number,omitempty" validate:"max=50"`
}

// FullName is "First Last".
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Sepa is the direct-debit mandate given for recurring tiers.
type Sepa struct {
	IBAN          string    `json:"iban" validate:"required,iban"`
	AccountHolder string    `json:"account_holder" validate:"required,max=100"`
	MandateDate   time.Time `json:"mandate_date" validate:"required"`
	// Signature is the drawn signature as an image data URL, if any.
	Signature string `json:"signature,omitempty"`
}

// HasSignature reports whether the customer signed the mandate.
func (s *Sepa) HasSignature() bool {
	return s != nil && s.Signature != ""
}

// Submission is the payload posted by the wizard's final step.
type Submission struct {
	Customer Customer `json:"customer"`
	Sepa     *Sepa    `json:"sepa,omitempty"`
}

// =============================================================================
// CONTRACT
// =============================================================================

// SyncStatus tracks delivery of a contract to one downstream channel.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSent    SyncStatus = "sent"
	SyncFailed  SyncStatus = "failed"
	SyncSkipped SyncStatus = "skipped" // channel not configured
)

// Done reports whether no further delivery attempts are needed.
func (s SyncStatus) Done() bool { return s == SyncSent || s == SyncSkipped }

// Contract is a persisted submission.
type Contract struct {
	ID        string
	Customer  Customer
	Sepa      *Sepa
	Quote     pricing.Quote
	CreatedAt time.Time

	EmailStatus   SyncStatus
	CRMStatus     SyncStatus
	SyncAttempts  int
	LastSyncError string
}

// NeedsSync reports whether either channel still has to be delivered.
func (c *Contract) NeedsSync() bool {
	return !c.EmailStatus.Done() || !c.CRMStatus.Done()
}

// ContractIDPrefix prefixes every contract number ("OC-...").
const ContractIDPrefix = "OC-"

// NewContractID returns a new k-sortable contract number.
func NewContractID() string {
	return ContractIDPrefix + ulid.Make().String()
}
