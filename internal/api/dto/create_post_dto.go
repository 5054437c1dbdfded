package dto

import "time"

// CreatePostDTO 发帖请求，Images 为 base64 或 data URI
type CreatePostDTO struct {
	Category    string  `json:"category" binding:"required,oneof=ROOMMATE SELL CARPOOL"`
	Title       *string `json:"title" binding:"required" validate:"max=255"`
	Description *string `json:"description" binding:"required" validate:"max=5000"`

	// ROOMMATE
	Community        string     `json:"community" validate:"max=255"`
	Rent             *float64   `json:"rent" validate:"omitempty,gte=0"`
	StartDate        *time.Time `json:"start_date"`
	GenderPreference string     `json:"gender_preference" validate:"omitempty,oneof=MALE FEMALE ANY male female any"`
	Preferences      []string   `json:"preferences" validate:"max=20"`

	// SELL
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Item        string   `json:"item" validate:"max=255"`
	SubCategory string   `json:"sub_category" validate:"max=32"`

	// CARPOOL
	FromLocation   string     `json:"from_location" validate:"max=255"`
	ToLocation     string     `json:"to_location" validate:"max=255"`
	DepartureTime  *time.Time `json:"departure_time"`
	SeatsAvailable int        `json:"seats_available" validate:"gte=0,lte=8"`

	Images []string `json:"images" validate:"max=9"`
}

// CreatePostResultDTO 发帖受理结果
type CreatePostResultDTO struct {
	PostID  string `json:"post_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CheckSpamDTO 发帖前预检
type CheckSpamDTO struct {
	Category    string `json:"category" binding:"required,oneof=ROOMMATE SELL CARPOOL"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CheckSpamResultDTO 预检结果，Blocked 表示正式提交会被拦截
type CheckSpamResultDTO struct {
	Blocked    bool     `json:"blocked"`
	Flagged    bool     `json:"is_flagged"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
	Threshold  float64  `json:"threshold"`
}
