package dto

import "time"

// ==================== AUTHENTICATION REQUEST DTOs ====================

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum" example:"johndoe"`
	Password string `json:"password" validate:"required,strong_password" example:"SecurePass123"`
}

func (r RegisterRequest) Validate() error {
	return GetValidator().Struct(r)
}

type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username" validate:"required" example:"user@example.com"`
	Password        string `json:"password" validate:"required" example:"SecurePass123"`
}

func (l LoginRequest) Validate() error {
	return GetValidator().Struct(l)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (r RefreshTokenRequest) Validate() error {
	return GetValidator().Struct(r)
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
	Code  string `json:"code" validate:"required,len=6,numeric" example:"123456"`
}

func (v VerifyEmailRequest) Validate() error {
	return GetValidator().Struct(v)
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
}

func (r ResendVerificationRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
}

func (f ForgotPasswordRequest) Validate() error {
	return GetValidator().Struct(f)
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email" example:"user@example.com"`
	Code        string `json:"code" validate:"required,len=6,numeric" example:"123456"`
	NewPassword string `json:"new_password" validate:"required,strong_password" example:"NewPass123"`
}

func (r ResetPasswordRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
}

func (c ChangePasswordRequest) Validate() error {
	return GetValidator().Struct(c)
}

// ==================== AUTHENTICATION RESPONSE DTOs ====================

type RegisterResponse struct {
	UserID               string `json:"user_id" example:"0190b2c4-..."`
	RequiresVerification bool   `json:"requires_verification" example:"true"`
	Message              string `json:"message" example:"Registration successful. Please check your email for the verification code."`
}

type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in" example:"86400"`
	User         UserInfo `json:"user"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in" example:"86400"`
}

type UserInfo struct {
	ID            string     `json:"id"`
	Username      string     `json:"username" example:"johndoe"`
	Email         string     `json:"email" example:"user@example.com"`
	Role          string     `json:"role" example:"user"`
	EmailVerified bool       `json:"email_verified" example:"true"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// ==================== ERROR RESPONSE DTOs ====================

type ValidationError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"invalid email format"`
}

type ValidationErrorResponse struct {
	Code    int               `json:"code" example:"400"`
	Message string            `json:"message" example:"Validation failed"`
	Errors  []ValidationError `json:"errors"`
}
