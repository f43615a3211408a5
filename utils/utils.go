package utils

import (
	"errors"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPassword(hash string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(userID, email, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func ValidateToken(tokenStr string, secret string) (*Claims, *apperr.Error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.Auth, "invalid or expired token")
	}
	return token.Claims.(*Claims), nil
}

// TokenCookieName is the cookie the session token travels in.
const TokenCookieName = "token"

func SetTokenCookie(c *gin.Context, token string) {
	secure := os.Getenv("COOKIE_SECURE") == "true"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookieName, token, int(TokenTTL().Seconds()), "/", os.Getenv("COOKIE_DOMAIN"), secure, true)
}

func ClearTokenCookie(c *gin.Context) {
	secure := os.Getenv("COOKIE_SECURE") == "true"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookieName, "", -1, "/", os.Getenv("COOKIE_DOMAIN"), secure, true)
}

func TokenTTL() time.Duration {
	days := ParseIntDefault(os.Getenv("TOKEN_TTL_DAYS"), 7)
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

func SignupOtpTTL() time.Duration {
	mins := ParseIntDefault(os.Getenv("SIGNUP_OTP_TTL_MINUTES"), 5)
	if mins <= 0 {
		mins = 5
	}
	return time.Duration(mins) * time.Minute
}

func ResetOtpTTL() time.Duration {
	mins := ParseIntDefault(os.Getenv("RESET_OTP_TTL_MINUTES"), 10)
	if mins <= 0 {
		mins = 10
	}
	return time.Duration(mins) * time.Minute
}

func OtpResendMax() int {
	return ParseIntDefault(os.Getenv("OTP_RESEND_MAX"), 2)
}

func SweepInterval() time.Duration {
	secs := ParseIntDefault(os.Getenv("SIGNUP_SWEEP_SECONDS"), 60)
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func InactivityWindow() time.Duration {
	days := ParseIntDefault(os.Getenv("INACTIVITY_WINDOW_DAYS"), 60)
	if days <= 0 {
		days = 60
	}
	return time.Duration(days) * 24 * time.Hour
}

func ParseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func IsDuplicateKey(err error) bool {
	// Preferred: typed error
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			log.Println("Error code", e.Code)
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	// Fallback
	msg := err.Error()
	return strings.Contains(msg, "E11000 duplicate key error")
}

func GenerateSlug(name string) string {
	// Normalize accents
	t := norm.NFD.String(name)
	var b strings.Builder
	for _, r := range t {
		if unicode.Is(unicode.Mn, r) {
			continue // remove accent marks
		}
		b.WriteRune(r)
	}

	s := strings.ToLower(b.String())

	// Replace non-alphanumeric with hyphen
	reg := regexp.MustCompile(`[^a-z0-9]+`)
	s = reg.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}
