package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleStudent  Role = "student"
	RoleEducator Role = "educator"
	RoleAdmin    Role = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string        `bson:"name" json:"name"`
	Email        string        `bson:"email" json:"email"`
	PasswordHash string        `bson:"passwordHash,omitempty" json:"-"` // never expose
	Role         Role          `bson:"role" json:"role"`
	GoogleID     string        `bson:"googleId,omitempty" json:"-"`
	PhotoURL     string        `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`

	// Password-reset ticket. Cleared after a successful reset.
	ResetOtpCode      string    `bson:"resetOtp,omitempty" json:"-"`
	ResetOtpExpiresAt time.Time `bson:"resetOtpExpires,omitempty" json:"-"`
	ResetOtpVerified  bool      `bson:"resetOtpVerified,omitempty" json:"-"`

	// IsActive is a tri-state: nil means "never set", which login
	// initializes to true. An explicit false is an admin override and
	// is never flipped back automatically.
	IsActive    *bool      `bson:"isActive,omitempty" json:"isActive,omitempty"`
	LastLoginAt *time.Time `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`

	EnrolledCourses []string `bson:"enrolledCourses,omitempty" json:"enrolledCourses"`
	Wishlist        []string `bson:"wishlist,omitempty" json:"wishlist"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ComputeStatus derives the displayed active/inactive status. A manual
// deactivation always wins; otherwise the user is inactive once the most
// recent of login, update and creation is older than the window.
func (u *User) ComputeStatus(now time.Time, window time.Duration) UserStatus {
	if u.IsActive != nil && !*u.IsActive {
		return StatusInactive
	}
	last := u.CreatedAt
	if u.UpdatedAt.After(last) {
		last = u.UpdatedAt
	}
	if u.LastLoginAt != nil && u.LastLoginAt.After(last) {
		last = *u.LastLoginAt
	}
	if now.Sub(last) > window {
		return StatusInactive
	}
	return StatusActive
}
