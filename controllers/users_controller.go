package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mayurvchitte/lms-ci-cd/apperr"
	"github.com/mayurvchitte/lms-ci-cd/database"
	"github.com/mayurvchitte/lms-ci-cd/dto"
	"github.com/mayurvchitte/lms-ci-cd/models"
	"github.com/mayurvchitte/lms-ci-cd/utils"
)

func requireAdmin(c *gin.Context) bool {
	roleVal, ok := c.Get("role")
	if !ok || roleVal.(string) != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return false
	}
	return true
}

func currentUserID(c *gin.Context) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.GetString("userID"))
	if err != nil {
		respondErr(c, apperr.New(apperr.Auth, "invalid auth context"))
		return bson.ObjectID{}, false
	}
	return id, true
}

type userWithStatus struct {
	models.User
	Status models.UserStatus `json:"status"`
}

// GET /admin/users
func GetAllUsers(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}

		list, err := users.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}

		now := time.Now().UTC()
		window := utils.InactivityWindow()
		out := make([]userWithStatus, 0, len(list))
		for i := range list {
			out = append(out, userWithStatus{
				User:   list[i],
				Status: list[i].ComputeStatus(now, window),
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// PATCH /admin/users/:id/status
func ToggleUserStatus(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}

		id, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondErr(c, apperr.New(apperr.Validation, "invalid user id"))
			return
		}

		user, err := users.FindByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			respondErr(c, apperr.New(apperr.NotFound, "user not found"))
			return
		}

		// A nil flag counts as active, so the toggle always lands on an
		// explicit value.
		active := user.IsActive == nil || *user.IsActive
		if err := users.SetActive(c.Request.Context(), id, !active); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}

		status := models.StatusActive
		if active {
			status = models.StatusInactive
		}
		c.JSON(http.StatusOK, gin.H{"message": "User marked as " + string(status)})
	}
}

// GET /currentuser
func GetCurrentUser(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentUserID(c)
		if !ok {
			return
		}

		user, err := users.FindByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			respondErr(c, apperr.New(apperr.NotFound, "user not found"))
			return
		}

		c.JSON(http.StatusOK, userWithStatus{
			User:   *user,
			Status: user.ComputeStatus(time.Now().UTC(), utils.InactivityWindow()),
		})
	}
}

// PATCH /user/profile (multipart: optional "name" field, optional "photo" file)
func UpdateProfile(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentUserID(c)
		if !ok {
			return
		}

		name := strings.TrimSpace(c.PostForm("name"))
		photoURL := ""

		if fh, err := c.FormFile("photo"); err == nil && fh != nil {
			r2, err := utils.NewCloudClient(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
				return
			}
			slug := utils.GenerateSlug(c.GetString("email"))
			url, err := utils.UploadAvatarToCloud(c.Request.Context(), r2, slug, fh)
			if err != nil {
				respondErr(c, apperr.New(apperr.Validation, err.Error()))
				return
			}
			photoURL = url
		}

		if name == "" && photoURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
			return
		}

		if err := users.UpdateProfile(c.Request.Context(), id, name, photoURL); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
	}
}

// POST /user/wishlist
func AddToWishlist(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentUserID(c)
		if !ok {
			return
		}

		var body dto.WishlistDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		if err := users.WishlistAdd(c.Request.Context(), id, body.CourseID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Course added to wishlist"})
	}
}

// DELETE /user/wishlist
func RemoveFromWishlist(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentUserID(c)
		if !ok {
			return
		}

		var body dto.WishlistDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondErr(c, apperr.New(apperr.Validation, err.Error()))
			return
		}

		if err := users.WishlistRemove(c.Request.Context(), id, body.CourseID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Course removed from wishlist"})
	}
}

// GET /user/wishlist
func GetWishlist(users database.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentUserID(c)
		if !ok {
			return
		}

		user, err := users.FindByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if user == nil {
			respondErr(c, apperr.New(apperr.NotFound, "user not found"))
			return
		}
		wishlist := user.Wishlist
		if wishlist == nil {
			wishlist = []string{}
		}
		c.JSON(http.StatusOK, wishlist)
	}
}
