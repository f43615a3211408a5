package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "non-digit in code %q", code)
		}
		seen[code] = true
	}
	// 50 draws from a million values colliding down to a handful would
	// mean a broken generator.
	assert.Greater(t, len(seen), 40)
}

func TestTicketVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ticket   Ticket
		code     string
		at       time.Time
		wantKind apperr.Kind
		wantOK   bool
	}{
		{
			name:   "match",
			ticket: Ticket{Code: "123456", ExpiresAt: now.Add(5 * time.Minute)},
			code:   "123456",
			at:     now,
			wantOK: true,
		},
		{
			name:   "match with surrounding whitespace",
			ticket: Ticket{Code: "123456", ExpiresAt: now.Add(5 * time.Minute)},
			code:   "  123456 ",
			at:     now,
			wantOK: true,
		},
		{
			name:     "no code stored",
			ticket:   Ticket{},
			code:     "123456",
			at:       now,
			wantKind: apperr.Otp,
		},
		{
			name:     "expired exactly at boundary",
			ticket:   Ticket{Code: "123456", ExpiresAt: now},
			code:     "123456",
			at:       now,
			wantKind: apperr.Expired,
		},
		{
			name:     "expired",
			ticket:   Ticket{Code: "123456", ExpiresAt: now.Add(-time.Second)},
			code:     "123456",
			at:       now,
			wantKind: apperr.Expired,
		},
		{
			name:     "wrong code",
			ticket:   Ticket{Code: "123456", ExpiresAt: now.Add(5 * time.Minute)},
			code:     "123457",
			at:       now,
			wantKind: apperr.InvalidCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticket.Verify(tt.code, tt.at)
			if tt.wantOK {
				require.Nil(t, err)
				assert.True(t, tt.ticket.Verified)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.False(t, tt.ticket.Verified)
		})
	}
}

func TestTicketVerifyRepeatAfterSuccess(t *testing.T) {
	now := time.Now()
	ticket := Ticket{Code: "654321", ExpiresAt: now.Add(time.Minute)}

	require.Nil(t, ticket.Verify("654321", now))
	require.True(t, ticket.Verified)

	// Same code again is accepted and leaves the ticket verified.
	require.Nil(t, ticket.Verify("654321", now))
	assert.True(t, ticket.Verified)
}

func TestTicketClear(t *testing.T) {
	ticket := Ticket{Code: "111111", ExpiresAt: time.Now().Add(time.Minute), Verified: true}
	ticket.Clear()

	assert.Empty(t, ticket.Code)
	assert.True(t, ticket.ExpiresAt.IsZero())
	assert.False(t, ticket.Verified)

	err := ticket.Verify("111111", time.Now())
	require.NotNil(t, err)
	assert.Equal(t, apperr.Otp, err.Kind)
}
