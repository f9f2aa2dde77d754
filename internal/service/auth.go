package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/smarthotel/internal/model"
	"github.com/mmeshcher/smarthotel/internal/validation"
)

const userStatusActive = "active"

// RegisterUser регистрирует нового пользователя. Пароль сохраняется в виде bcrypt-хеша.
func (s *Service) RegisterUser(ctx context.Context, name, email, password, contactNo, role string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateCredentials(email, password); err != nil {
		return nil, err
	}
	if err := validation.ValidateRegistrationRole(role); err != nil {
		return nil, err
	}

	_, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: email %s is already registered", model.ErrConflict, email)
	case !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.store.CreateUser(ctx, &model.User{
		ID:        s.newID(model.UserIDPrefix),
		Name:      strings.TrimSpace(name),
		Email:     email,
		Password:  string(hash),
		Role:      role,
		ContactNo: contactNo,
		Status:    userStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", u.Role))
	u.Password = ""
	return u, nil
}

// AuthenticateUser проверяет почту, пароль и роль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password, role string) (*model.User, error) {
	if err := validation.ValidateLoginRole(role); err != nil {
		return nil, err
	}

	u, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	if u.Role != role {
		return nil, model.ErrInvalidCredentials
	}

	u.Password = ""
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
