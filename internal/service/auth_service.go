package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"agency-crm-api/internal/model"
	"agency-crm-api/internal/rbac"
	"agency-crm-api/internal/repository"
	"agency-crm-api/pkg/jwt"
	"agency-crm-api/pkg/validator"
)

var (
	ErrInvalidCredentials = newUnauthenticated("Invalid email or password")
	ErrUserInactive       = newUnauthenticated("User account is inactive")
	ErrSessionReplaced    = newUnauthenticated("Session expired (logged in on another device)")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) error
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	// Authenticate resolves a bearer token to an active user holding the current session.
	Authenticate(ctx context.Context, tokenString string) (*model.User, error)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token       string             `json:"token"`
	User        model.UserResponse `json:"user"`
	Role        model.Role         `json:"role"`
	Permissions []string           `json:"permissions"`
}

type TokenValidationResponse struct {
	User        model.UserResponse `json:"user"`
	Role        model.Role         `json:"role"`
	Permissions []string           `json:"permissions"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, newInternal("Failed to load user", err)
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Single session: rotate the token version
	tokenVersion := uuid.New().String()
	if err := s.userRepo.UpdateSession(ctx, user.ID, tokenVersion, time.Now()); err != nil {
		return nil, newInternal("Failed to update session", err)
	}

	// 5. Generate JWT token with the new version
	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.DisplayName(), string(user.Role), tokenVersion)
	if err != nil {
		return nil, newInternal("Failed to generate token", err)
	}

	return &LoginResponse{
		Token:       token,
		User:        user.ToResponse(),
		Role:        user.Role,
		Permissions: rbac.PermissionStrings(user.Role),
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return newValidation(validator.Message(errs))
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return newInternal("Failed to load user", err)
	}

	// Unknown email and wrong password share one error.
	if !user.CheckPassword(req.OldPassword) {
		return ErrInvalidCredentials
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return newInternal("Failed to hash new password", err)
	}
	// A new password ends every open session.
	user.TokenVersion = uuid.New().String()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return newInternal("Failed to update password", err)
	}
	return nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	user, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return &TokenValidationResponse{
		User:        user.ToResponse(),
		Role:        user.Role,
		Permissions: rbac.PermissionStrings(user.Role),
	}, nil
}

func (s *authService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: err.Error(), Err: err}
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newUnauthenticated("User not found")
		}
		return nil, newInternal("Failed to load user", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	return user, nil
}
