package signup

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
	"github.com/mayurvchitte/lms-ci-cd/otp"
)

const redisKeyPrefix = "signup:"

// maxTxRetries bounds optimistic-lock retries when a concurrent writer
// touches the same session between our read and EXEC.
const maxTxRetries = 5

// errRejected signals that the transaction closure resolved to an
// application error (captured alongside) rather than a redis failure.
var errRejected = errors.New("signup: request rejected")

// RedisStore backs the session store with a shared expiring cache so
// several instances of the service see the same pending signups. The
// key TTL doubles as the eviction sweep.
//
// Every mutation runs as a WATCH-guarded transaction on the session
// key: a resend racing a verify (or two concurrent resends) forces a
// retry instead of interleaving, mirroring the per-email lock the
// in-memory store holds.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	resendMax int
	now       func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration, resendMax int) *RedisStore {
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		resendMax: resendMax,
		now:       time.Now,
	}
}

func (s *RedisStore) key(email string) string {
	return redisKeyPrefix + email
}

func (s *RedisStore) RequestOTP(ctx context.Context, email, name, role string) (string, *apperr.Error) {
	key := s.key(email)

	var code string
	var rejection *apperr.Error

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}

		now := s.now()
		resend := 0
		if len(vals) > 0 && expiresAfter(vals, now) {
			resend, _ = strconv.Atoi(vals["resend"])
			if resend >= s.resendMax {
				rejection = apperr.New(apperr.RateLimited, "resend limit reached")
				return errRejected
			}
			resend++
		}

		fresh, genErr := otp.GenerateCode()
		if genErr != nil {
			rejection = apperr.New(apperr.Internal, "could not generate code")
			return errRejected
		}
		expiresAt := now.Add(s.ttl)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				"otp":       fresh,
				"name":      name,
				"role":      role,
				"resend":    resend,
				"verified":  "0",
				"expiresAt": expiresAt.Unix(),
			})
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		code = fresh
		return nil
	}

	if aerr := s.runTx(ctx, key, txf, &rejection); aerr != nil {
		return "", aerr
	}
	return code, nil
}

func (s *RedisStore) VerifyOTP(ctx context.Context, email, code string) *apperr.Error {
	key := s.key(email)

	var rejection *apperr.Error

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			rejection = apperr.New(apperr.Otp, "no signup in progress")
			return errRejected
		}

		now := s.now()
		if !expiresAfter(vals, now) {
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			}); err != nil {
				return err
			}
			rejection = apperr.New(apperr.Expired, "code expired")
			return errRejected
		}

		ticket := ticketFrom(vals)
		if verr := ticket.Verify(code, now); verr != nil {
			rejection = verr
			return errRejected
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "verified", "1")
			return nil
		})
		return err
	}

	return s.runTx(ctx, key, txf, &rejection)
}

func (s *RedisStore) Consume(ctx context.Context, email string) (string, string, *apperr.Error) {
	key := s.key(email)

	var name, role string
	var rejection *apperr.Error

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(vals) == 0 || vals["verified"] != "1" || !expiresAfter(vals, s.now()) {
			rejection = apperr.New(apperr.Precondition, "otp verification required")
			return errRejected
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		}); err != nil {
			return err
		}
		name, role = vals["name"], vals["role"]
		return nil
	}

	if aerr := s.runTx(ctx, key, txf, &rejection); aerr != nil {
		return "", "", aerr
	}
	return name, role, nil
}

// runTx executes txf under WATCH on key, retrying on optimistic-lock
// conflicts. A rejection captured by the closure is returned as-is.
func (s *RedisStore) runTx(ctx context.Context, key string, txf func(*redis.Tx) error, rejection **apperr.Error) *apperr.Error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errRejected):
			return *rejection
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return apperr.New(apperr.Internal, "session store unavailable")
		}
	}
	return apperr.New(apperr.Internal, "session store busy")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func expiresAfter(vals map[string]string, now time.Time) bool {
	unix, err := strconv.ParseInt(vals["expiresAt"], 10, 64)
	if err != nil {
		return false
	}
	return now.Before(time.Unix(unix, 0))
}

func ticketFrom(vals map[string]string) otp.Ticket {
	unix, _ := strconv.ParseInt(vals["expiresAt"], 10, 64)
	return otp.Ticket{
		Code:      vals["otp"],
		ExpiresAt: time.Unix(unix, 0),
		Verified:  vals["verified"] == "1",
	}
}
