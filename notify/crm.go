package notify

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/iban"
	"github.com/aircare/contract-engine/pricing"
)

// Source identifies this application in CRM payloads.
const Source = "onderhoudscontract_app"

// CRMConfig configures the CRM inbound webhook.
type CRMConfig struct {
	Enabled    bool
	WebhookURL string
}

// CRMWebhook posts new contracts to the CRM as contacts.
type CRMWebhook struct {
	cfg    CRMConfig
	client *retryablehttp.Client
	now    func() time.Time
}

var _ contract.Notifier = (*CRMWebhook)(nil)

func NewCRMWebhook(cfg CRMConfig, client *retryablehttp.Client) *CRMWebhook {
	return &CRMWebhook{cfg: cfg, client: client, now: time.Now}
}

// CRMContact is the webhook payload.
type CRMContact struct {
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Address1     string          `json:"address1"`
	City         string          `json:"city"`
	PostalCode   string          `json:"postalCode"`
	Tags         []string        `json:"tags"`
	CustomFields CRMCustomFields `json:"customFields"`
	Source       string          `json:"source"`
	Timestamp    string          `json:"timestamp"`
}

type CRMCustomFields struct {
	ContractType     string `json:"contract_type"`
	MonthlyAmount    string `json:"monthly_amount"`
	TotalAmount      string `json:"total_amount"`
	OutdoorUnits     int    `json:"outdoor_units"`
	IndoorUnits      int    `json:"indoor_units"`
	PaymentFrequency string `json:"payment_frequency"`
	IBANLast4        string `json:"iban_last4,omitempty"`
	HasSignature     bool   `json:"has_signature"`
	ContractID       string `json:"contract_id"`
}

// Notify posts c to the CRM webhook.
func (w *CRMWebhook) Notify(ctx context.Context, c *contract.Contract) error {
	if !w.cfg.Enabled || w.cfg.WebhookURL == "" {
		return contract.ErrNotifierDisabled
	}
	_, err := postJSON(ctx, w.client, w.cfg.WebhookURL, BuildCRMContact(c, w.now()))
	return err
}

// BuildCRMContact maps a contract to the CRM payload.
func BuildCRMContact(c *contract.Contract, at time.Time) CRMContact {
	cust := c.Customer

	tags := lo.Compact([]string{
		"onderhoudscontract",
		"contract_" + string(cust.Tier),
		string(cust.Frequency),
		lo.Ternary(cust.Tier == pricing.TierPremium, "premium_klant", ""),
	})

	var last4 string
	if c.Sepa != nil {
		last4 = iban.Last4(c.Sepa.IBAN)
	}

	return CRMContact{
		FirstName:  cust.FirstName,
		LastName:   cust.LastName,
		Email:      cust.Email,
		Phone:      strings.Join(strings.Fields(cust.Phone), ""),
		Address1:   cust.Address,
		City:       cust.City,
		PostalCode: cust.PostalCode,
		Tags:       tags,
		CustomFields: CRMCustomFields{
			ContractType:     string(cust.Tier),
			MonthlyAmount:    c.Quote.MonthlyPrice.StringFixed(2),
			TotalAmount:      c.Quote.Total.StringFixed(2),
			OutdoorUnits:     cust.OutdoorUnits,
			IndoorUnits:      cust.IndoorUnits,
			PaymentFrequency: string(cust.Frequency),
			IBANLast4:        last4,
			HasSignature:     c.Sepa.HasSignature(),
			ContractID:       c.ID,
		},
		Source:    Source,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}
