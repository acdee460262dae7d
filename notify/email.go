package notify

import (
	"context"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/iban"
	"github.com/aircare/contract-engine/pricing"
)

// EmailConfig configures the EmailJS confirmation email.
type EmailConfig struct {
	Enabled    bool
	Endpoint   string
	ServiceID  string
	TemplateID string
	PublicKey  string
}

// EmailSender sends the confirmation email to the customer.
type EmailSender struct {
	cfg    EmailConfig
	client *retryablehttp.Client
}

var _ contract.Notifier = (*EmailSender)(nil)

func NewEmailSender(cfg EmailConfig, client *retryablehttp.Client) *EmailSender {
	return &EmailSender{cfg: cfg, client: client}
}

type emailRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Notify sends the confirmation email for c.
func (s *EmailSender) Notify(ctx context.Context, c *contract.Contract) error {
	if !s.cfg.Enabled || s.cfg.Endpoint == "" || s.cfg.ServiceID == "" {
		return contract.ErrNotifierDisabled
	}
	_, err := postJSON(ctx, s.client, s.cfg.Endpoint, emailRequest{
		ServiceID:      s.cfg.ServiceID,
		TemplateID:     s.cfg.TemplateID,
		UserID:         s.cfg.PublicKey,
		TemplateParams: TemplateParams(c),
	})
	return err
}

var tierEmailLabels = map[pricing.Tier]string{
	pricing.TierNone:    "Geen contract (eenmalig)",
	pricing.TierBasic:   "Basis pakket",
	pricing.TierPremium: "Premium pakket",
}

// TemplateParams builds the variables used by the email template.
func TemplateParams(c *contract.Contract) map[string]string {
	cust := c.Customer

	params := map[string]string{
		"email":               cust.Email,
		"order_id":            c.ID,
		"to_name":             cust.FullName(),
		"from_email":          cust.Email,
		"phone":               cust.Phone,
		"city":                cust.City,
		"customer_number":     cust.CustomerNumber,
		"last_quote_number":   cust.LastQuoteNumber,
		"last_invoice_number": cust.LastInvoiceNumber,
		"contract_type":       tierEmailLabels[cust.Tier],
		"outdoor_units":       strconv.Itoa(cust.OutdoorUnits),
		"indoor_units":        strconv.Itoa(cust.IndoorUnits),
		"payment_frequency":   "",
		"total_price":         c.Quote.TotalText(),
		"iban":                "",
		"account_holder":      "",
		"service":             serviceText(c),
	}
	if cust.Tier.IsRecurring() {
		params["payment_frequency"] = string(cust.Frequency)
	}
	if c.Sepa != nil {
		params["iban"] = iban.Format(c.Sepa.IBAN)
		params["account_holder"] = c.Sepa.AccountHolder
	}
	return params
}

func serviceText(c *contract.Contract) string {
	if !c.Customer.Tier.IsRecurring() {
		return "Wij nemen contact met u op voor het plannen van de onderhoudsbeurt. " +
			"U betaalt na afloop van de onderhoudsbeurt."
	}
	last4 := "****"
	if c.Sepa != nil {
		last4 = iban.Last4(c.Sepa.IBAN)
	}
	return "Uw contract gaat in binnen 5 werkdagen. De afschrijving zal plaatsvinden aan het einde " +
		"van de maand tussen de 27ste en 28ste op de door u opgegeven rekening eindigend op ..." + last4 + "."
}
