package handlers

import (
	"mime/multipart"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/model"
)

type AuthServiceInterface interface {
	Register(req dto.RegisterRequest) (*dto.RegisterResponse, error)
	VerifyEmail(req dto.VerifyEmailRequest) error
	ResendVerification(req dto.ResendVerificationRequest) error
	Login(req dto.LoginRequest, clientIP, userAgent string) (*dto.LoginResponse, error)
	RefreshToken(req dto.RefreshTokenRequest) (*dto.TokenPair, error)
	Logout(authHeader string) error
	ForgotPassword(req dto.ForgotPasswordRequest) error
	ResetPassword(req dto.ResetPasswordRequest) error
	ChangePassword(userID string, req dto.ChangePasswordRequest) error
}

type UserServiceInterface interface {
	GetProfile(userID string) (*dto.UserProfileResponse, error)
	UpdateProfile(userID string, req dto.UpdateProfileRequest) (*dto.UserProfileResponse, error)
	CheckUsername(username string) (*dto.UsernameCheckResponse, error)
}

type PostServiceInterface interface {
	CreatePost(authorID string, req dto.CreatePostRequest) (*dto.PostResponse, error)
	GetPost(postID, viewerID string) (*model.Post, error)
	UpdatePost(postID, userID string, req dto.UpdatePostRequest) (*dto.PostResponse, error)
	DeletePost(postID, userID, userRole string) error
	SetImageURL(postID, userID, imageURL string) error
	ListPosts(req dto.ListPostsRequest, viewerID string) (*dto.PostListResponse, error)
	ToResponse(post *model.Post) *dto.PostResponse
}

type ViewServiceInterface interface {
	Process(post *model.Post, viewerIP, viewerUserID, userAgent, acceptLanguage string) dto.ViewMeta
}

type MediaServiceInterface interface {
	UploadPostImage(postID string, fileHeader *multipart.FileHeader) (*dto.MediaUploadResponse, error)
}

type ViewAnalyticsServiceInterface interface {
	Summarize() dto.ViewAnalyticsSummary
}

type RateLimitServiceInterface interface {
	Stats() []dto.RateLimiterStats
	ResetKey(key string)
}
