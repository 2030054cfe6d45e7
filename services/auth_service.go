package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"committeehub/internal/storage"
	"committeehub/models"
	"committeehub/utils"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// Session is an authenticated user with a freshly issued token
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// AuthService manages accounts. Display names are copied into committee and
// motion documents, so a rename is pushed out to all of them.
type AuthService struct {
	users      storage.UserStore
	committees storage.CommitteeStore
	motions    storage.MotionStore
	opts       Options
}

func NewAuthService(users storage.UserStore, committees storage.CommitteeStore, motions storage.MotionStore, opts Options) *AuthService {
	return &AuthService{users: users, committees: committees, motions: motions, opts: opts.withDefaults()}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, validationf("name, email and password are required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}
	s.opts.Logger.Info("user registered", "user", user.ID.Hex())
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, validationf("email and password are required")
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrAccessDenied)
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(in.Password, user.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrAccessDenied)
	}
	return s.session(user)
}

func (s *AuthService) Me(ctx context.Context, who models.Identity) (*models.User, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	user, err := s.users.FindUserByID(ctx, who.ID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// UpdateProfile renames the caller and rewrites the stored name everywhere it
// was copied.
func (s *AuthService) UpdateProfile(ctx context.Context, who models.Identity, name string) (*models.User, error) {
	if !who.Authenticated() {
		return nil, ErrAccessDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name is required")
	}
	user, err := s.users.UpdateUserName(ctx, who.ID, name)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if err := s.committees.RenameMemberRecords(ctx, user.Identity(), name); err != nil {
		return nil, fmt.Errorf("failed to update member records: %w", err)
	}
	if err := s.motions.RenameAuthor(ctx, user.ID, name); err != nil {
		return nil, fmt.Errorf("failed to update motion authorship: %w", err)
	}
	s.opts.Logger.Info("user renamed", "user", user.ID.Hex())
	return user, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := utils.GenerateJWTToken(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}
