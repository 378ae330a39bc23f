// Package services holds the request-shaped layer between the HTTP handlers
// and the engine: account management and group membership lifecycle.
package services

import (
	"context"
	"errors"

	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store"
	"github.com/dapoalex/AjoPool/internal/utils"
	"github.com/dapoalex/AjoPool/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
)

type UserService struct {
	store  store.Store
	tokens *jwt.TokenManager
}

func NewUserService(st store.Store, tokens *jwt.TokenManager) *UserService {
	return &UserService{store: st, tokens: tokens}
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token,omitempty"`
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*UserResponse, error) {
	if !utils.ValidateUserName(req.Username) {
		return nil, errors.New("invalid username format")
	}
	if !utils.ValidateEmail(req.Email) {
		return nil, errors.New("invalid email format")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, errors.New("password must be at least 8 characters")
	}

	if _, err := s.findByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var byEmail []models.User
	err := s.store.Query(ctx, models.CollectionUsers,
		[]store.Filter{store.Eq("email", req.Email)}, store.Options{Limit: 1}, &byEmail)
	if err != nil {
		return nil, err
	}
	if len(byEmail) > 0 {
		return nil, ErrEmailTaken
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
	}
	id, err := s.store.Create(ctx, models.CollectionUsers, &user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return &UserResponse{
		UserID:      id,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}

func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*UserResponse, error) {
	user, err := s.findByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}

	return &UserResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Token:       token,
	}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.store.Get(ctx, models.CollectionUsers, userID, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if !utils.ValidatePassword(newPassword) {
		return errors.New("password must be at least 8 characters")
	}

	var user models.User
	if err := s.store.Get(ctx, models.CollectionUsers, userID, &user); err != nil {
		return err
	}
	if !utils.CheckPassword(user.PasswordHash, oldPassword) {
		return errors.New("old password is incorrect")
	}

	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, models.CollectionUsers, userID,
		map[string]any{"password_hash": newHash})
}

func (s *UserService) RefreshToken(tokenString string) (string, error) {
	return s.tokens.RefreshToken(tokenString)
}

func (s *UserService) findByUsername(ctx context.Context, username string) (*models.User, error) {
	var users []models.User
	err := s.store.Query(ctx, models.CollectionUsers,
		[]store.Filter{store.Eq("username", username)}, store.Options{Limit: 1}, &users)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, store.ErrNotFound
	}
	return &users[0], nil
}
