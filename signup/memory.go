package signup

import (
	"context"
	"sync"
	"time"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
	"github.com/mayurvchitte/lms-ci-cd/otp"
)

// MemoryStore keeps sessions in process memory. Each email gets its own
// lock so unrelated signups never serialize behind each other. A
// background sweeper evicts expired sessions on a fixed interval.
//
// The store is scoped to one process: a restart discards pending
// signups, and multiple instances do not see each other's sessions. Use
// RedisStore for multi-instance deployments.
type MemoryStore struct {
	ttl       time.Duration
	resendMax int

	sessions sync.Map // email -> *entry

	now  func() time.Time
	done chan struct{}
	wg   sync.WaitGroup
}

type entry struct {
	mu   sync.Mutex
	sess *Session
	gone bool // entry was removed from the map while someone held a reference
}

func NewMemoryStore(ttl time.Duration, resendMax int, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		ttl:       ttl,
		resendMax: resendMax,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *MemoryStore) RequestOTP(_ context.Context, email, name, role string) (string, *apperr.Error) {
	for {
		v, _ := s.sessions.LoadOrStore(email, &entry{})
		e := v.(*entry)
		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue // raced with eviction, re-acquire a fresh entry
		}

		now := s.now()

		// A session past its expiry is not live; start over.
		if e.sess != nil && !now.Before(e.sess.Ticket.ExpiresAt) {
			e.sess = nil
		}

		if e.sess == nil {
			ticket, err := otp.New(now, s.ttl)
			if err != nil {
				e.mu.Unlock()
				return "", apperr.New(apperr.Internal, "could not generate code")
			}
			e.sess = &Session{Email: email, Name: name, Role: role, Ticket: ticket}
			code := ticket.Code
			e.mu.Unlock()
			return code, nil
		}

		// Resend on the live session.
		if e.sess.ResendCount >= s.resendMax {
			e.mu.Unlock()
			return "", apperr.New(apperr.RateLimited, "resend limit reached")
		}
		ticket, err := otp.New(now, s.ttl)
		if err != nil {
			e.mu.Unlock()
			return "", apperr.New(apperr.Internal, "could not generate code")
		}
		e.sess.Ticket = ticket
		e.sess.ResendCount++
		e.sess.Name = name
		e.sess.Role = role
		code := ticket.Code
		e.mu.Unlock()
		return code, nil
	}
}

func (s *MemoryStore) VerifyOTP(_ context.Context, email, code string) *apperr.Error {
	v, ok := s.sessions.Load(email)
	if !ok {
		return apperr.New(apperr.Otp, "no signup in progress")
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gone || e.sess == nil {
		return apperr.New(apperr.Otp, "no signup in progress")
	}

	now := s.now()
	if !now.Before(e.sess.Ticket.ExpiresAt) {
		s.evictLocked(email, e)
		return apperr.New(apperr.Expired, "code expired")
	}
	return e.sess.Ticket.Verify(code, now)
}

func (s *MemoryStore) Consume(_ context.Context, email string) (string, string, *apperr.Error) {
	v, ok := s.sessions.Load(email)
	if !ok {
		return "", "", apperr.New(apperr.Precondition, "otp verification required")
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gone || e.sess == nil || !e.sess.Ticket.Verified {
		return "", "", apperr.New(apperr.Precondition, "otp verification required")
	}
	if !s.now().Before(e.sess.Ticket.ExpiresAt) {
		s.evictLocked(email, e)
		return "", "", apperr.New(apperr.Precondition, "otp verification required")
	}

	name, role := e.sess.Name, e.sess.Role
	s.evictLocked(email, e)
	return name, role, nil
}

// evictLocked removes the session; the caller holds e.mu.
func (s *MemoryStore) evictLocked(email string, e *entry) {
	e.sess = nil
	e.gone = true
	s.sessions.Delete(email)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.sessions.Range(func(key, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.gone && (e.sess == nil || !now.Before(e.sess.Ticket.ExpiresAt)) {
			s.evictLocked(key.(string), e)
		}
		e.mu.Unlock()
		return true
	})
}

func (s *MemoryStore) Close() error {
	close(s.done)
	s.wg.Wait()
	return nil
}
