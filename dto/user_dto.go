package dto

type WishlistDTO struct {
	CourseID string `json:"courseId" binding:"required"`
}
