// Package otp holds the one-time-code ticket shared by the signup flow
// and the password-reset flow: a code, an expiry and a verified flag
// that gates exactly one sensitive action.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
	"time"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

type Ticket struct {
	Code      string
	ExpiresAt time.Time
	Verified  bool
}

// New generates a fresh ticket valid for ttl from now.
func New(now time.Time, ttl time.Duration) (Ticket, error) {
	code, err := GenerateCode()
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{Code: code, ExpiresAt: now.Add(ttl)}, nil
}

// GenerateCode returns an unbiased fixed-length numeric code.
func GenerateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	s := n.String()
	for len(s) < CodeLength {
		s = "0" + s
	}
	return s, nil
}

// Verify checks a submitted code against the ticket and marks it
// verified on success. Repeating the same code against an already
// verified ticket succeeds without further mutation.
func (t *Ticket) Verify(code string, now time.Time) *apperr.Error {
	if t.Code == "" {
		return apperr.New(apperr.Otp, "no code requested")
	}
	if !now.Before(t.ExpiresAt) {
		return apperr.New(apperr.Expired, "code expired")
	}
	submitted := strings.TrimSpace(code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(t.Code)) != 1 {
		return apperr.New(apperr.InvalidCode, "invalid code")
	}
	t.Verified = true
	return nil
}

// Clear wipes the code and expiry once the guarded action has run, so
// the same code can never be replayed.
func (t *Ticket) Clear() {
	t.Code = ""
	t.ExpiresAt = time.Time{}
	t.Verified = false
}
