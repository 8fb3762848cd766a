package services

import (
	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/services/repositories"
	"github.com/fableink/fable_api/shared"
)

// UserService covers profile reads and updates for the authenticated user.
type UserService struct {
	context.DefaultService

	sqlSvc *SqlService

	userRepo *repositories.UserRepository
	postRepo *repositories.PostRepository
}

const USER_SVC = "user_svc"

func (svc UserService) Id() string {
	return USER_SVC
}

func (svc *UserService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *UserService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	svc.userRepo = repositories.NewUserRepository(svc.sqlSvc.Db())
	svc.postRepo = repositories.NewPostRepository(svc.sqlSvc.Db())
	return nil
}

func (svc *UserService) GetProfile(userID string) (*dto.UserProfileResponse, error) {
	user, err := svc.userRepo.GetUser(userID)
	if err != nil {
		return nil, shared.NewNotFoundError(err, "User not found")
	}

	postCount, err := svc.postRepo.CountByAuthor(userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Failed to count user posts")
	}

	return &dto.UserProfileResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		IsActive:      user.IsActive,
		CreatedAt:     user.CreatedAt,
		LastLoginAt:   user.LastLoginAt,
		LastLoginIP:   user.LastLoginIP,
		PostCount:     postCount,
	}, nil
}

func (svc *UserService) UpdateProfile(userID string, req dto.UpdateProfileRequest) (*dto.UserProfileResponse, error) {
	user, err := svc.userRepo.GetUser(userID)
	if err != nil {
		return nil, shared.NewNotFoundError(err, "User not found")
	}

	if req.Username != "" && req.Username != user.Username {
		if exists, err := svc.userRepo.UsernameExists(req.Username); err != nil {
			return nil, shared.NewInternalError(err, "Failed to check username")
		} else if exists {
			return nil, shared.NewConflictError(nil, "Username is already taken")
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if exists, err := svc.userRepo.EmailExists(req.Email); err != nil {
			return nil, shared.NewInternalError(err, "Failed to check email")
		} else if exists {
			return nil, shared.NewConflictError(nil, "Email is already registered")
		}
		// Changing email requires verifying the new address
		user.Email = req.Email
		user.EmailVerified = false
	}

	if err := svc.userRepo.UpdateUser(user); err != nil {
		return nil, shared.NewInternalError(svc.sqlSvc.HandleError(err), "Failed to update profile")
	}

	return svc.GetProfile(userID)
}

func (svc *UserService) CheckUsername(username string) (*dto.UsernameCheckResponse, error) {
	exists, err := svc.userRepo.UsernameExists(username)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to check username")
	}

	return &dto.UsernameCheckResponse{
		Username:  username,
		Available: !exists,
	}, nil
}
