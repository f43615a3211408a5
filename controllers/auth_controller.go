package controllers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
	"github.com/mayurvchitte/lms-ci-cd/database"
	"github.com/mayurvchitte/lms-ci-cd/dto"
	"github.com/mayurvchitte/lms-ci-cd/models"
	"github.com/mayurvchitte/lms-ci-cd/otp"
	"github.com/mayurvchitte/lms-ci-cd/signup"
	"github.com/mayurvchitte/lms-ci-cd/utils"
)

func respondErr(c *gin.Context, err *apperr.Error) {
	c.JSON(err.Status(), gin.H{"error": err.Message})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// POST /signup/send-otp
func SendSignupOtp(store signup.Store, users database.UserStore, mailer utils.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.SendSignupOtpDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		email := normalizeEmail(body.Email)
		role := body.Role
		if role == "" {
			role = string(models.RoleStudent)
		}

		taken, err := users.EmailTaken(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if taken {
			respondErr(c, apperr.New(apperr.Conflict, "email already registered"))
			return
		}

		code, serr := store.RequestOTP(c.Request.Context(), email, strings.TrimSpace(body.Name), role)
		if serr != nil {
			respondErr(c, serr)
			return
		}

		msg := fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", code, int(utils.SignupOtpTTL().Minutes()))
		if err := mailer.Send(email, "Your signup OTP", msg); err != nil {
			log.Println("signup otp mail:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send otp"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	}
}

// POST /signup/verify-otp
func VerifySignupOtp(store signup.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.VerifySignupOtpDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		if serr := store.VerifyOTP(c.Request.Context(), normalizeEmail(body.Email), body.Otp); serr != nil {
			respondErr(c, serr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "OTP verified"})
	}
}

// POST /signup
func SignUp(store signup.Store, users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.SignupDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		email := normalizeEmail(body.Email)

		name, role, serr := store.Consume(c.Request.Context(), email)
		if serr != nil {
			respondErr(c, serr)
			return
		}

		hash, err := utils.HashPassword(body.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}

		now := time.Now().UTC()
		user := models.User{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         models.Role(role),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Insert(c.Request.Context(), &user); err != nil {
			// Raced with a concurrent create between verification and
			// finalization.
			if utils.IsDuplicateKey(err) {
				respondErr(c, apperr.New(apperr.Conflict, "email already registered"))
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
			return
		}

		token, err := utils.GenerateToken(user.ID.Hex(), user.Email, string(user.Role), utils.TokenTTL())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		utils.SetTokenCookie(c, token)

		c.JSON(http.StatusCreated, gin.H{"message": "Signup successful", "user": user})
	}
}

// POST /login
func Login(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		user, err := users.FindByEmail(c.Request.Context(), normalizeEmail(body.Email))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user not found"})
			return
		}
		if user.PasswordHash == "" || utils.CheckPassword(user.PasswordHash, body.Password) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
			return
		}

		now := time.Now().UTC()
		if err := users.RecordLogin(c.Request.Context(), user.ID, now); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		user.LastLoginAt = &now

		token, err := utils.GenerateToken(user.ID.Hex(), user.Email, string(user.Role), utils.TokenTTL())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		utils.SetTokenCookie(c, token)

		c.JSON(http.StatusOK, user)
	}
}

// GET /logout
func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.ClearTokenCookie(c)
		c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
	}
}

// POST /google/token
func GoogleToken(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.GoogleTokenDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		payload, err := idtoken.Validate(c.Request.Context(), body.IDToken, os.Getenv("GOOGLE_CLIENT_ID"))
		if err != nil {
			log.Println("google token validate:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "google verification failed"})
			return
		}

		email, _ := payload.Claims["email"].(string)
		name, _ := payload.Claims["name"].(string)
		if email == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "google verification failed"})
			return
		}
		email = normalizeEmail(email)

		user, err := users.FindByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			now := time.Now().UTC()
			user = &models.User{
				Name:      name,
				Email:     email,
				Role:      models.RoleStudent,
				GoogleID:  payload.Subject,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := users.Insert(c.Request.Context(), user); err != nil {
				if !utils.IsDuplicateKey(err) {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
					return
				}
				// Lost a race with a concurrent create; use the winner.
				user, err = users.FindByEmail(c.Request.Context(), email)
				if err != nil || user == nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
					return
				}
			}
		}

		now := time.Now().UTC()
		if err := users.RecordLogin(c.Request.Context(), user.ID, now); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		token, err := utils.GenerateToken(user.ID.Hex(), user.Email, string(user.Role), utils.TokenTTL())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		utils.SetTokenCookie(c, token)

		c.JSON(http.StatusOK, user)
	}
}

// POST /forgot-password
func ForgotPassword(users database.UserStore, mailer utils.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ForgotPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		email := normalizeEmail(body.Email)
		user, err := users.FindByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			respondErr(c, apperr.New(apperr.NotFound, "user not found"))
			return
		}

		ticket, err := otp.New(time.Now().UTC(), utils.ResetOtpTTL())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate code"})
			return
		}
		if err := users.SaveResetTicket(c.Request.Context(), email, ticket); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save code"})
			return
		}

		msg := fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", ticket.Code, int(utils.ResetOtpTTL().Minutes()))
		if err := mailer.Send(email, "Password reset OTP", msg); err != nil {
			log.Println("reset otp mail:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send otp"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	}
}

// POST /verify-forgot-password-otp
func VerifyForgotPasswordOtp(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.VerifyForgotPasswordOtpDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		email := normalizeEmail(body.Email)
		user, err := users.FindByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			respondErr(c, apperr.New(apperr.NotFound, "user not found"))
			return
		}

		ticket := otp.Ticket{
			Code:      user.ResetOtpCode,
			ExpiresAt: user.ResetOtpExpiresAt,
			Verified:  user.ResetOtpVerified,
		}
		if verr := ticket.Verify(body.Otp, time.Now().UTC()); verr != nil {
			respondErr(c, verr)
			return
		}
		if err := users.SaveResetTicket(c.Request.Context(), email, ticket); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save verification"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "OTP verified"})
	}
}

// POST /forgot-password-reset
func ForgotPasswordReset(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		email := normalizeEmail(body.Email)
		user, err := users.FindByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil || !user.ResetOtpVerified {
			c.JSON(http.StatusBadRequest, gin.H{"error": "otp verification required"})
			return
		}

		hash, err := utils.HashPassword(body.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}
		// UpdatePassword also burns the single-use reset ticket.
		if err := users.UpdatePassword(c.Request.Context(), email, hash); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
	}
}
