// Package password holds the password strength policy and the argon2id
// hashing used for stored credentials.
package password

import (
	"unicode"
	"unicode/utf8"

	"github.com/redmonkez12/cicero/internal/apperr"
)

// MinLength is the minimum number of characters a password must have.
const MinLength = 10

// PolicyMessage is shown to users whose password fails the policy.
const PolicyMessage = "password needs min 10 characters, 1 digit, 1 symbol, 1 lower and 1 uppercase letter"

// Verdict reports which strength rules a password violates.
type Verdict struct {
	OK             bool `json:"password_ok"`
	LengthError    bool `json:"length_error"`
	DigitError     bool `json:"digit_error"`
	UppercaseError bool `json:"uppercase_error"`
	LowercaseError bool `json:"lowercase_error"`
	SymbolError    bool `json:"symbol_error"`
}

// Check evaluates p against the policy. A symbol is any character that is
// not a letter, a number or an underscore.
func Check(p string) Verdict {
	var digit, upper, lower, symbol bool
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		}
		if !isWordRune(r) {
			symbol = true
		}
	}

	v := Verdict{
		LengthError:    utf8.RuneCountInString(p) < MinLength,
		DigitError:     !digit,
		UppercaseError: !upper,
		LowercaseError: !lower,
		SymbolError:    !symbol,
	}
	v.OK = !(v.LengthError || v.DigitError || v.UppercaseError || v.LowercaseError || v.SymbolError)
	return v
}

// Err returns a validation error when the verdict is not OK.
func (v Verdict) Err() error {
	if v.OK {
		return nil
	}
	return apperr.New(apperr.KindValidation, PolicyMessage)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
