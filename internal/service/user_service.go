package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService provides account lookups for login and the role tier of the admin gate.
type UserService struct {
	db *gorm.DB
}

// NewUserService returns a new UserService instance.
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

// RoleFor implements auth.RoleSource.
func (s *UserService) RoleFor(ctx context.Context, principalID uint) (string, error) {
	var user db.User
	err := s.db.WithContext(ctx).Select("role").First(&user, principalID).Error
	if err != nil {
		return "", fmt.Errorf("load role of user %d: %w", principalID, err)
	}
	return user.Role, nil
}

// Principal converts a stored user into the identity handed to the gate.
func (s *UserService) Principal(ctx context.Context, id uint) (*auth.Principal, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// Authenticate checks an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", trimmed).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}
