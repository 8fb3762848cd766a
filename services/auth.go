package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/model"
	"github.com/fableink/fable_api/services/repositories"
	"github.com/fableink/fable_api/shared"
)

// AuthService implements registration with email OTP verification, login
// with JWT issuance and the password reset flow. OTP codes and token
// blacklist entries live in redis with their natural TTLs.
type AuthService struct {
	appContext.DefaultService

	sqlSvc   *SqlService
	jwtSvc   *JWTService
	emailSvc *EmailService
	redisSvc *RedisService
	geoSvc   *GeolocationService

	userRepo *repositories.UserRepository

	otpTTL time.Duration
}

const AUTH_SVC = "auth_svc"

const (
	otpVerifyKey    = "otp:verify:%s"
	otpResetKey     = "otp:reset:%s"
	jwtBlacklistKey = "jwt:blacklist:%s"
)

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Configure(ctx *appContext.Context) error {
	svc.otpTTL = envDuration("OTP_TTL", 10*time.Minute)
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	svc.emailSvc = svc.Service(EMAIL_SVC).(*EmailService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.geoSvc = svc.Service(GEOLOCATION_SVC).(*GeolocationService)

	svc.userRepo = repositories.NewUserRepository(svc.sqlSvc.Db())
	return nil
}

// ==================== REGISTRATION ====================

func (svc *AuthService) Register(req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if exists, err := svc.userRepo.EmailExists(req.Email); err != nil {
		return nil, shared.NewInternalError(err, "Failed to check email")
	} else if exists {
		return nil, shared.NewConflictError(nil, "Email is already registered")
	}

	if exists, err := svc.userRepo.UsernameExists(req.Username); err != nil {
		return nil, shared.NewInternalError(err, "Failed to check username")
	} else if exists {
		return nil, shared.NewConflictError(nil, "Username is already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to hash password")
	}

	user, err := svc.userRepo.CreateUser(req.Email, req.Username, string(hashedPassword))
	if err != nil {
		return nil, shared.NewInternalError(svc.sqlSvc.HandleError(err), "Failed to create user")
	}

	if err := svc.issueVerificationCode(user); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Failed to issue verification code")
	}

	log.WithFields(log.Fields{"user_id": user.ID, "email": user.Email}).Info("User registered")

	return &dto.RegisterResponse{
		UserID:               user.ID,
		RequiresVerification: true,
		Message:              "Registration successful. Check your email for the verification code.",
	}, nil
}

func (svc *AuthService) issueVerificationCode(user *model.User) error {
	code, err := generateOTPCode()
	if err != nil {
		return err
	}

	key := fmt.Sprintf(otpVerifyKey, user.Email)
	if err := svc.redisSvc.Set(context.Background(), key, code, svc.otpTTL); err != nil {
		return err
	}

	go func() {
		if err := svc.emailSvc.SendVerificationEmail(user.Email, user.Username, code); err != nil {
			log.WithError(err).WithField("email", user.Email).Error("Failed to send verification email")
		}
	}()
	return nil
}

func (svc *AuthService) VerifyEmail(req dto.VerifyEmailRequest) error {
	key := fmt.Sprintf(otpVerifyKey, req.Email)
	stored, err := svc.redisSvc.Get(context.Background(), key)
	if err != nil {
		return shared.NewInternalError(err, "Failed to check verification code")
	}
	if stored == "" || stored != req.Code {
		return shared.NewBadRequestError(nil, "Invalid or expired verification code")
	}

	user, err := svc.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		return shared.NewNotFoundError(err, "User not found")
	}

	if err := svc.userRepo.MarkEmailVerified(user.ID); err != nil {
		return shared.NewInternalError(err, "Failed to verify email")
	}

	if err := svc.redisSvc.Delete(context.Background(), key); err != nil {
		log.WithError(err).Warn("Failed to delete used verification code")
	}

	log.WithField("user_id", user.ID).Info("Email verified")
	return nil
}

func (svc *AuthService) ResendVerification(req dto.ResendVerificationRequest) error {
	user, err := svc.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		// Do not reveal whether the address exists
		return nil
	}
	if user.EmailVerified {
		return shared.NewBadRequestError(nil, "Email is already verified")
	}

	if err := svc.issueVerificationCode(user); err != nil {
		return shared.NewInternalError(err, "Failed to resend verification code")
	}
	return nil
}

// ==================== LOGIN ====================

func (svc *AuthService) Login(req dto.LoginRequest, ip, userAgent string) (*dto.LoginResponse, error) {
	user, err := svc.userRepo.GetUserByEmailOrUsername(req.EmailOrUsername)
	if err != nil {
		return nil, shared.NewUnauthorizedError(nil, "Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, shared.NewUnauthorizedError(nil, "Invalid credentials")
	}

	if !user.IsActive {
		return nil, shared.NewForbiddenError(nil, "Account is disabled")
	}

	if !user.EmailVerified {
		return nil, shared.NewForbiddenError(nil, "Email is not verified")
	}

	tokens, err := svc.jwtSvc.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to issue tokens")
	}

	_ = svc.userRepo.UpdateLastLogin(user.ID, ip)

	go svc.sendLoginNotification(user, ip, userAgent)

	log.WithFields(log.Fields{"user_id": user.ID, "ip": ip}).Info("User logged in")

	return &dto.LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		User: dto.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
			Role:     user.Role,
		},
	}, nil
}

func (svc *AuthService) sendLoginNotification(user *model.User, ip, userAgent string) {
	location, _ := svc.geoSvc.GetLocationByIP(ip)
	loginTime := time.Now().Format("2006-01-02 15:04:05 MST")

	if err := svc.emailSvc.SendLoginNotificationEmail(user.Email, user.Username, loginTime, ip, userAgent, location); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send login notification")
	}
}

func (svc *AuthService) RefreshToken(req dto.RefreshTokenRequest) (*dto.TokenPair, error) {
	claims, err := svc.jwtSvc.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, shared.NewUnauthorizedError(err, "Invalid refresh token")
	}

	blacklisted, err := svc.isBlacklisted(claims.ID)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to check token")
	}
	if blacklisted {
		return nil, shared.NewUnauthorizedError(nil, "Refresh token has been revoked")
	}

	user, err := svc.userRepo.GetUser(claims.UserID)
	if err != nil {
		return nil, shared.NewUnauthorizedError(err, "User not found")
	}
	if !user.IsActive {
		return nil, shared.NewForbiddenError(nil, "Account is disabled")
	}

	// Rotate: old refresh token is dead the moment a new pair is issued
	svc.blacklist(claims.ID, time.Until(claims.ExpiresAt.Time))

	tokens, err := svc.jwtSvc.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to issue tokens")
	}
	return tokens, nil
}

func (svc *AuthService) Logout(authHeader string) error {
	tokenStr, err := svc.jwtSvc.ExtractTokenFromHeader(authHeader)
	if err != nil {
		return shared.NewUnauthorizedError(err, "Invalid authorization header")
	}

	claims, err := svc.jwtSvc.VerifyJWTToken(tokenStr)
	if err != nil {
		return shared.NewUnauthorizedError(err, "Invalid token")
	}

	svc.blacklist(claims.ID, time.Until(claims.ExpiresAt.Time))
	return nil
}

func (svc *AuthService) blacklist(jti string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	key := fmt.Sprintf(jwtBlacklistKey, jti)
	if err := svc.redisSvc.Set(context.Background(), key, "1", ttl); err != nil {
		log.WithError(err).WithField("jti", jti).Error("Failed to blacklist token")
	}
}

func (svc *AuthService) isBlacklisted(jti string) (bool, error) {
	return svc.redisSvc.Exists(context.Background(), fmt.Sprintf(jwtBlacklistKey, jti))
}

// ==================== PASSWORD RESET ====================

func (svc *AuthService) ForgotPassword(req dto.ForgotPasswordRequest) error {
	user, err := svc.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		// Same response whether or not the address exists
		return nil
	}

	code, err := generateOTPCode()
	if err != nil {
		return shared.NewInternalError(err, "Failed to generate reset code")
	}

	key := fmt.Sprintf(otpResetKey, req.Email)
	if err := svc.redisSvc.Set(context.Background(), key, code, svc.otpTTL); err != nil {
		return shared.NewInternalError(err, "Failed to store reset code")
	}

	go func() {
		if err := svc.emailSvc.SendPasswordResetEmail(user.Email, user.Username, code); err != nil {
			log.WithError(err).WithField("email", user.Email).Error("Failed to send password reset email")
		}
	}()
	return nil
}

func (svc *AuthService) ResetPassword(req dto.ResetPasswordRequest) error {
	key := fmt.Sprintf(otpResetKey, req.Email)
	stored, err := svc.redisSvc.Get(context.Background(), key)
	if err != nil {
		return shared.NewInternalError(err, "Failed to check reset code")
	}
	if stored == "" || stored != req.Code {
		return shared.NewBadRequestError(nil, "Invalid or expired reset code")
	}

	user, err := svc.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		return shared.NewNotFoundError(err, "User not found")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return shared.NewInternalError(err, "Failed to hash password")
	}

	if err := svc.userRepo.UpdateUserPassword(user.ID, string(hashedPassword)); err != nil {
		return shared.NewInternalError(err, "Failed to update password")
	}

	if err := svc.redisSvc.Delete(context.Background(), key); err != nil {
		log.WithError(err).Warn("Failed to delete used reset code")
	}

	log.WithField("user_id", user.ID).Info("Password reset completed")
	return nil
}

func (svc *AuthService) ChangePassword(userID string, req dto.ChangePasswordRequest) error {
	user, err := svc.userRepo.GetUser(userID)
	if err != nil {
		return shared.NewNotFoundError(err, "User not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return shared.NewUnauthorizedError(nil, "Current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return shared.NewInternalError(err, "Failed to hash password")
	}

	if err := svc.userRepo.UpdateUserPassword(user.ID, string(hashedPassword)); err != nil {
		return shared.NewInternalError(err, "Failed to update password")
	}

	return nil
}

// ==================== MIDDLEWARE ====================

// RequiredAuth rejects requests without a valid, non-blacklisted access
// token and stores the caller identity in request locals.
func (svc *AuthService) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := svc.claimsFromRequest(c)
		if err != nil {
			return err
		}

		c.Locals(shared.UserID, claims.UserID)
		c.Locals(shared.UserRole, claims.Role)
		return c.Next()
	}
}

// OptionalAuth attaches the caller identity when a valid token is present
// but lets anonymous requests through.
func (svc *AuthService) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}

		claims, err := svc.claimsFromRequest(c)
		if err == nil {
			c.Locals(shared.UserID, claims.UserID)
			c.Locals(shared.UserRole, claims.Role)
		}
		return c.Next()
	}
}

// RequireRole gates a route to callers whose token carries the role.
// Must run after RequiredAuth.
func (svc *AuthService) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(shared.UserRole) != role {
			return shared.NewForbiddenError(nil, "Insufficient permissions")
		}
		return c.Next()
	}
}

func (svc *AuthService) claimsFromRequest(c *fiber.Ctx) (*CustomClaims, error) {
	tokenStr, err := svc.jwtSvc.ExtractTokenFromHeader(c.Get("Authorization"))
	if err != nil {
		return nil, shared.NewUnauthorizedError(err, "Authorization required")
	}

	claims, err := svc.jwtSvc.VerifyJWTToken(tokenStr)
	if err != nil {
		return nil, shared.NewUnauthorizedError(err, "Invalid or expired token")
	}

	blacklisted, err := svc.isBlacklisted(claims.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to check token blacklist")
	} else if blacklisted {
		return nil, shared.NewUnauthorizedError(nil, "Token has been revoked")
	}

	return claims, nil
}

// ==================== HELPERS ====================

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
