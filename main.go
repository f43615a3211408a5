package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mayurvchitte/lms-ci-cd/controllers"
	"github.com/mayurvchitte/lms-ci-cd/database"
	"github.com/mayurvchitte/lms-ci-cd/gateway"
	"github.com/mayurvchitte/lms-ci-cd/middleware"
	"github.com/mayurvchitte/lms-ci-cd/signup"
	"github.com/mayurvchitte/lms-ci-cd/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	ctx := context.Background()

	usersCol := database.OpenCollection("users")
	users := database.NewMongoUsers(usersCol)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal("user indexes: ", err)
	}
	if err := utils.SeedAdminUser(ctx, usersCol); err != nil {
		log.Fatal(err)
	}

	payments := database.NewMongoPayments(database.OpenCollection("payments"))
	courses := database.NewMongoCourses(database.OpenCollection("courses"))

	signupStore := newSignupStore()
	defer signupStore.Close()

	mailer := utils.NewSMTPMailer()
	gw := gateway.NewFromEnv()

	r := gin.New()

	origins := os.Getenv("ALLOWED_ORIGINS")
	allowedOrigins := map[string]bool{}
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}
	log.Printf("Allowed origins: %v", allowedOrigins)
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	r.POST("/signup/send-otp", controllers.SendSignupOtp(signupStore, users, mailer))
	r.POST("/signup/verify-otp", controllers.VerifySignupOtp(signupStore))
	r.POST("/signup", controllers.SignUp(signupStore, users))
	r.POST("/login", controllers.Login(users))
	r.GET("/logout", controllers.Logout())
	r.POST("/google/token", controllers.GoogleToken(users))
	r.POST("/forgot-password", controllers.ForgotPassword(users, mailer))
	r.POST("/verify-forgot-password-otp", controllers.VerifyForgotPasswordOtp(users))
	r.POST("/forgot-password-reset", controllers.ForgotPasswordReset(users))

	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.GET("/currentuser", controllers.GetCurrentUser(users))
		auth.PATCH("/user/profile", controllers.UpdateProfile(users))
		auth.GET("/user/wishlist", controllers.GetWishlist(users))
		auth.POST("/user/wishlist", controllers.AddToWishlist(users))
		auth.DELETE("/user/wishlist", controllers.RemoveFromWishlist(users))

		auth.POST("/payment/order", controllers.CreateOrder(payments, courses, gw))
		auth.POST("/payment/verify", controllers.VerifyPayment(payments, users, gw))

		auth.GET("/admin/users", controllers.GetAllUsers(users))
		auth.PATCH("/admin/users/:id/status", controllers.ToggleUserStatus(users))
	}

	// Server will listen on 0.0.0.0:8080 unless PORT is set
	r.Run()
}

// newSignupStore picks the shared Redis store when REDIS_ADDR is set so
// several instances see the same pending signups; otherwise pending
// signups live in process memory and vanish on restart.
func newSignupStore() signup.Store {
	ttl := utils.SignupOtpTTL()
	resendMax := utils.OtpResendMax()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       utils.ParseIntDefault(os.Getenv("REDIS_DB"), 0),
		})
		log.Println("Signup sessions: redis store at", addr)
		return signup.NewRedisStore(client, ttl, resendMax)
	}

	log.Println("Signup sessions: in-memory store (single instance only)")
	return signup.NewMemoryStore(ttl, resendMax, utils.SweepInterval())
}
