// Package signup holds the ephemeral pending-registration state that
// gates account creation on OTP verification. The store is injected so
// handlers never touch process-global state, and so a shared cache can
// back it when more than one instance runs.
package signup

import (
	"context"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
	"github.com/mayurvchitte/lms-ci-cd/otp"
)

// Session is one pending registration, keyed by email. At most one live
// session exists per address.
type Session struct {
	Email       string
	Name        string
	Role        string
	Ticket      otp.Ticket
	ResendCount int
}

// Store is the keyed session store. Implementations serialize
// operations per email, not across unrelated signups.
type Store interface {
	// RequestOTP creates a session for the address, or treats the call
	// as a resend when a live one exists. It returns the fresh code for
	// dispatch. A resend past the configured maximum fails with
	// RateLimited and leaves the session untouched.
	RequestOTP(ctx context.Context, email, name, role string) (string, *apperr.Error)

	// VerifyOTP checks the submitted code and marks the session
	// verified. An expired session is evicted on the spot.
	VerifyOTP(ctx context.Context, email, code string) *apperr.Error

	// Consume atomically returns the session's name and role and
	// deletes it. It fails with Precondition unless the session exists
	// and is verified.
	Consume(ctx context.Context, email string) (name, role string, err *apperr.Error)

	// Close releases background resources (sweeper, connections).
	Close() error
}
