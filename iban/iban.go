/*
Package iban validates and formats International Bank Account Numbers.

PURPOSE:
  The SEPA step of the contract wizard checks the customer's IBAN while they
  type, shows it in grouped form and names the Dutch bank it belongs to.
  Submission is gated on Validate.

VALIDATION (Validate):
  1. Strip whitespace, uppercase
  2. Pattern: 2 letters, 2 digits, 1+ alphanumerics
  3. Length between 15 and 34; Dutch (NL) IBANs exactly 18
  4. ISO 7064 mod-97: move the first 4 characters to the end, replace each
     letter with its value (A=10 .. Z=35) and require value mod 97 == 1

FAILURE SEMANTICS:
  Malformed input is an expected event while typing. Validate returns false,
  Format and BankName degrade gracefully. Nothing in this package panics or
  returns an error.

SEE ALSO:
  - banks.go: Dutch bank code table
*/
package iban

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	MinLength     = 15
	MaxLength     = 34
	DutchLength   = 18
	DutchCountry  = "NL"
	groupSize     = 4
	checkModulus  = 97
	checkExpected = 1
)

var pattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]+$`)

// Canonical strips all whitespace and uppercases the input.
func Canonical(raw string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
}

// Validate reports whether raw is a structurally valid IBAN with a correct
// mod-97 checksum.
func Validate(raw string) bool {
	s := Canonical(raw)

	if !pattern.MatchString(s) {
		return false
	}
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	if strings.HasPrefix(s, DutchCountry) && len(s) != DutchLength {
		return false
	}

	return checksum(s) == checkExpected
}

// checksum computes the ISO 7064 mod-97 remainder. The numeric form of a
// 34-character IBAN has up to 68 digits, so math/big is required.
func checksum(s string) int64 {
	rearranged := s[4:] + s[:4]

	var digits strings.Builder
	digits.Grow(len(rearranged) * 2)
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			digits.WriteString(strconv.Itoa(int(r - 55)))
			continue
		}
		digits.WriteRune(r)
	}

	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return -1
	}
	return new(big.Int).Mod(n, big.NewInt(checkModulus)).Int64()
}

// Format groups the canonical IBAN in blocks of four separated by a single
// space, e.g. "NL91 ABNA 0417 1643 00". Any characters present are grouped,
// valid or not.
func Format(raw string) string {
	s := Canonical(raw)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/groupSize)
	for i, r := range []rune(s) {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Last4 returns the last four characters of the canonical IBAN, used to
// identify the account on emails and in the CRM without exposing it.
func Last4(raw string) string {
	s := []rune(Canonical(raw))
	if len(s) <= 4 {
		return string(s)
	}
	return string(s[len(s)-4:])
}
