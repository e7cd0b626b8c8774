package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/common/models"
)

// bcrypt ignores everything past 72 bytes.
const MaxPasswordBytes = 72

const specialCharacters = `!@#$%^&*(),.?":{}|<>`

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionEnded       = errors.New("session has ended")
	ErrPasswordTooLong    = errors.New("Password is too long (maximum 72 bytes)")

	nonDigits = regexp.MustCompile(`\D`)
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func NewValidationError(reason error) error {
	return ValidationError{reason: reason}
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// UserStore is the persistence the service needs. *Repository implements it.
type UserStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, string, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	CreateSession(ctx context.Context, session models.Session, clientInfo map[string]interface{}) error
	GetSession(ctx context.Context, tokenID string) (models.Session, error)
	EndSession(ctx context.Context, tokenID string, at time.Time) (bool, error)
}

// SessionCache holds active sessions by token id. Misses fall through to
// the store.
type SessionCache interface {
	Get(ctx context.Context, tokenID string) (models.Session, bool, error)
	Set(ctx context.Context, session models.Session) error
	Delete(ctx context.Context, tokenID string) error
}

type Service struct {
	repo  UserStore
	cache SessionCache
	now   func() time.Time
}

// NewService builds the account service. cache may be nil.
func NewService(repo UserStore, cache SessionCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func validateRegistration(req models.RegisterRequest) error {
	name := strings.TrimSpace(req.Name)
	if n := len([]rune(name)); n < 2 || n > 100 {
		return errors.New("Name must be between 2 and 100 characters")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != strings.TrimSpace(req.Email) {
		return errors.New("Invalid email address")
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.ConfirmPassword != req.Password {
		return errors.New("Passwords do not match")
	}
	if req.Age < 1 || req.Age > 150 {
		return errors.New("Age must be between 1 and 150")
	}
	digits := nonDigits.ReplaceAllString(req.MobileNumber, "")
	if len(digits) < 10 || len(digits) > 15 {
		return errors.New("Mobile number must be between 10 and 15 digits")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("Password must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
		if strings.ContainsRune(specialCharacters, r) {
			special = true
		}
	}

	switch {
	case !upper:
		return errors.New("Password must contain at least one uppercase letter")
	case !lower:
		return errors.New("Password must contain at least one lowercase letter")
	case !digit:
		return errors.New("Password must contain at least one digit")
	case !special:
		return errors.New("Password must contain at least one special character")
	}
	return nil
}

// Register validates req, hashes the password and stores the account.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	if err := validateRegistration(req); err != nil {
		return models.User{}, NewValidationError(err)
	}
	if len(req.Password) > MaxPasswordBytes {
		return models.User{}, NewValidationError(ErrPasswordTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserInput{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Age:          req.Age,
		MobileNumber: strings.TrimSpace(req.MobileNumber),
		Photo:        req.Photo,
		PasswordHash: string(hash),
		Metadata:     map[string]interface{}{"source": "register"},
	})
	if err != nil {
		return models.User{}, err
	}

	logger.FromContext(ctx).WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	if password == "" || len(password) > MaxPasswordBytes {
		return models.User{}, ErrInvalidCredentials
	}

	user, hash, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// StartSession records a login for the token identified by tokenID.
func (s *Service) StartSession(ctx context.Context, userID uuid.UUID, tokenID string, expiresAt time.Time, clientInfo map[string]interface{}) (models.Session, error) {
	session := models.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenID:   tokenID,
		LoginTime: s.now(),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.repo.CreateSession(ctx, session, clientInfo); err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, session); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("failed to cache session")
		}
	}
	return session, nil
}

// Logout ends the session for tokenID. A missing or already ended session
// is logged and otherwise ignored.
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, tokenID); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("failed to evict cached session")
		}
	}

	ended, err := s.repo.EndSession(ctx, tokenID, s.now())
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if !ended {
		logger.FromContext(ctx).WithField("token_id", tokenID).Warn("No active session found for logout")
	}
	return nil
}

// ValidateSession reports whether tokenID belongs to an active session of
// userID and the user still exists. The cache only saves the session
// lookup; the user is checked on every call.
func (s *Service) ValidateSession(ctx context.Context, userID uuid.UUID, tokenID string) error {
	now := s.now()

	if s.cache != nil {
		session, ok, err := s.cache.Get(ctx, tokenID)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("session cache lookup failed")
		}
		if ok && session.UserID == userID && session.Active(now) {
			return s.requireUser(ctx, userID, tokenID)
		}
	}

	session, err := s.repo.GetSession(ctx, tokenID)
	if err != nil {
		return err
	}
	if session.UserID != userID || !session.Active(now) {
		return ErrSessionEnded
	}
	if err := s.requireUser(ctx, userID, tokenID); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, session); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("failed to cache session")
		}
	}
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID, tokenID string) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) && s.cache != nil {
			if err := s.cache.Delete(ctx, tokenID); err != nil {
				logger.FromContext(ctx).WithError(err).Warn("failed to evict cached session")
			}
		}
		return err
	}
	return nil
}
