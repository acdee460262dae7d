package iban

// UnknownBank is returned by BankName for Dutch IBANs whose bank code is
// not in the table.
const UnknownBank = "Onbekende bank"

var dutchBanks = map[string]string{
	"ABNA": "ABN AMRO",
	"RABO": "Rabobank",
	"INGB": "ING",
	"SNSB": "SNS Bank",
	"TRIO": "Triodos Bank",
	"BUNQ": "Bunq",
	"KNAB": "Knab",
	"ASNB": "ASN Bank",
	"RBRB": "RegioBank",
}

// BankName resolves the bank of a Dutch IBAN from the code at positions 5-8.
// The second return value is false for non-Dutch input, where no lookup is
// attempted. Dutch IBANs with an unknown or truncated code yield UnknownBank.
func BankName(raw string) (string, bool) {
	s := Canonical(raw)
	if len(s) < 2 || s[:2] != DutchCountry {
		return "", false
	}
	if len(s) < 8 {
		return UnknownBank, true
	}
	if name, ok := dutchBanks[s[4:8]]; ok {
		return name, true
	}
	return UnknownBank, true
}
