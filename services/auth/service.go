package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = apperror.Unauthenticated("invalid credentials")
	ErrUserNotFound          = apperror.NotFound("user not found")
	ErrUserInactive          = apperror.Forbidden("user is disabled")
	ErrEmailTaken            = apperror.Validation("email is already registered")
	ErrInvalidRole           = apperror.Validation("role must be resident or admin")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
	// dummyHash is compared against when an email is unknown so lookups
	// and wrong passwords take the same time.
	dummyHash []byte
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("condoaccess-timing-guard"), cfg.Auth.BcryptCost)
	return &Service{
		config:    cfg,
		db:        db,
		logger:    logger,
		dummyHash: dummy,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return apperror.Validation(fmt.Sprintf("password must be at least %d characters", s.config.Auth.MinLength))
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if s.config.Auth.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.Auth.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.Auth.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		return apperror.Validation("password must contain at least " + strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser provisions an account. Used by the CLI; there is no public
// registration endpoint.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.Validation("a valid email is required")
	}
	if role == "" {
		role = RoleResident
	}
	if role != RoleResident && role != RoleAdmin {
		return nil, ErrInvalidRole
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, apperror.Store("check existing user", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	user := &User{Email: email, PasswordHash: hash, Role: role, Active: true}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		s.logger.Error("failed to create user", zap.String("email", email), zap.Error(err))
		return nil, apperror.Store("create user", err)
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("role", role))
	return user, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Store("find user", err)
	}
	return &user, nil
}

// Authenticate checks email and password. Unknown emails, disabled accounts
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (refreshsession.Principal, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperror.KindOf(err) == apperror.KindStore {
			return refreshsession.Principal{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return refreshsession.Principal{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("password verification failed", zap.Uint("user_id", user.ID))
		return refreshsession.Principal{}, ErrInvalidCredentials
	}
	if !user.Active {
		return refreshsession.Principal{}, ErrInvalidCredentials
	}

	return principalOf(user), nil
}

// LookupPrincipal resolves a user for token rotation. Disabled users cannot
// rotate.
func (s *Service) LookupPrincipal(ctx context.Context, userID uint) (refreshsession.Principal, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return refreshsession.Principal{}, ErrUserNotFound
	}
	if err != nil {
		return refreshsession.Principal{}, apperror.Store("find user", err)
	}
	if !user.Active {
		return refreshsession.Principal{}, ErrUserInactive
	}
	return principalOf(&user), nil
}

func principalOf(u *User) refreshsession.Principal {
	return refreshsession.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}
