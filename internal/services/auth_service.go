package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"shuttle_tracker/internal/models"
	"shuttle_tracker/internal/store"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	Role     string
}

// AuthService registers users and checks credentials. Tokens are issued by
// the HTTP layer.
type AuthService struct {
	store store.Store
	cost  int
}

func NewAuthService(s store.Store) *AuthService {
	return &AuthService{store: s, cost: bcrypt.DefaultCost}
}

// HashPassword hashes with bcrypt's default cost.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register is self-service sign-up. Admin accounts cannot be created this
// way.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.register(ctx, in, false)
}

// CreateUser lets an administrator create any kind of account.
func (s *AuthService) CreateUser(ctx context.Context, actor Actor, in RegisterInput) (*models.User, error) {
	if !actor.Role.CanAdminister() {
		return nil, unauthorized("access denied")
	}
	return s.register(ctx, in, true)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, allowAdmin bool) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, validationf("username, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, validationf("invalid email address")
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, validationf("%v", err)
	}
	if role.CanAdminister() && !allowAdmin {
		return nil, unauthorized("admin accounts are created by administrators")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     role,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("Username or email already exists")
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("User registered.")
	return user, nil
}

// Login returns the user when the password matches. Unknown users and bad
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, unauthorized("Invalid username or password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, unauthorized("Invalid username or password")
	}
	return user, nil
}
