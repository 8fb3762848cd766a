package dto

import "time"

type UserProfileResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username" example:"johndoe"`
	Email         string     `json:"email" example:"user@example.com"`
	Role          string     `json:"role" example:"user"`
	EmailVerified bool       `json:"email_verified" example:"true"`
	IsActive      bool       `json:"is_active" example:"true"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP   string     `json:"last_login_ip,omitempty" example:"192.168.1.1"`
	PostCount     int64      `json:"post_count" example:"12"`
}

type UpdateProfileRequest struct {
	Username string `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum" example:"newusername"`
	Email    string `json:"email,omitempty" validate:"omitempty,email" example:"newemail@example.com"`
}

func (u UpdateProfileRequest) Validate() error {
	return GetValidator().Struct(u)
}

type UsernameCheckResponse struct {
	Username  string `json:"username" example:"johndoe"`
	Available bool   `json:"available" example:"true"`
}
