package contract

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/aircare/contract-engine/iban"
	"github.com/aircare/contract-engine/pricing"
)

var postcodeNL = regexp.MustCompile(`^[1-9][0-9]{3}\s?[A-Z]{2}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names so API clients can map them.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		_ = v.RegisterValidation("iban", func(fl validator.FieldLevel) bool {
			return iban.Validate(fl.Field().String())
		})
		_ = v.RegisterValidation("postcode_nl", func(fl validator.FieldLevel) bool {
			return postcodeNL.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		})

		validate = v
	})
	return validate
}

// Normalize trims free-text fields, canonicalizes postal code and IBAN, and
// drops the SEPA mandate for the one-time tier, which is paid after the visit.
func Normalize(sub Submission) Submission {
	c := &sub.Customer
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.PostalCode = strings.ToUpper(strings.TrimSpace(c.PostalCode))
	c.City = strings.TrimSpace(c.City)

	if !c.Tier.IsRecurring() {
		sub.Sepa = nil
		return sub
	}
	if sub.Sepa != nil {
		sepa := *sub.Sepa
		sepa.IBAN = iban.Canonical(sepa.IBAN)
		sepa.AccountHolder = strings.TrimSpace(sepa.AccountHolder)
		sub.Sepa = &sepa
	}
	return sub
}

// Validate checks a normalized submission. Recurring tiers require a SEPA
// mandate with a valid IBAN.
func Validate(sub Submission) error {
	fields := make(map[string]string)
	collect(fields, "customer", getValidator().Struct(sub.Customer))

	if sub.Customer.Tier.IsRecurring() {
		if sub.Sepa == nil {
			fields["sepa"] = "required"
		} else {
			collect(fields, "sepa", getValidator().Struct(sub.Sepa))
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return markValidation(&ValidationError{Fields: fields}, "Controleer de gemarkeerde velden")
}

// ValidateQuoteInput checks the inputs of a price preview.
func ValidateQuoteInput(tier pricing.Tier, outdoor, indoor int, freq pricing.PaymentFrequency) error {
	if _, err := pricing.ParseTier(string(tier)); err != nil {
		return markValidation(err, "Kies een geldig contracttype")
	}
	if _, err := pricing.ParsePaymentFrequency(string(freq)); err != nil {
		return markValidation(err, "Kies maandelijks of jaarlijks")
	}
	if _, err := pricing.NewEquipment(outdoor, indoor); err != nil {
		return markValidation(err, "Vul minimaal 1 buitendeel en 1 binnendeel in")
	}
	return nil
}

func collect(fields map[string]string, prefix string, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields[prefix] = err.Error()
		return
	}
	for _, fe := range verrs {
		fields[prefix+"."+fe.Field()] = fe.Tag()
	}
}
