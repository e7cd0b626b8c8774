package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mediscanner/api/pkg/common/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailAlreadyExists  = errors.New("user with this email already exists")
	ErrMobileAlreadyExists = errors.New("user with this mobile number already exists")
	ErrSessionNotFound     = errors.New("session not found")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Age          int
	MobileNumber string `gorm:"uniqueIndex"`
	Photo        *string
	PasswordHash string
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// SessionModel is one login. TokenID is the jti of the issued token.
type SessionModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;index"`
	TokenID    string    `gorm:"uniqueIndex"`
	LoginTime  time.Time
	LogoutTime *time.Time
	ExpiresAt  time.Time `gorm:"index"`
	ClientInfo datatypes.JSONMap `gorm:"type:jsonb"`

	User UserModel `gorm:"foreignKey:UserID"`
}

func (SessionModel) TableName() string {
	return "user_sessions"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&UserModel{}, &SessionModel{})
}

type CreateUserInput struct {
	Name         string
	Email        string
	Age          int
	MobileNumber string
	Photo        *string
	PasswordHash string
	Metadata     map[string]interface{}
}

func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	normalizedEmail := normalizeEmail(input.Email)

	var existing int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", normalizedEmail).Count(&existing).Error; err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, ErrEmailAlreadyExists
	}
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Where("mobile_number = ?", input.MobileNumber).Count(&existing).Error; err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, ErrMobileAlreadyExists
	}

	now := time.Now().UTC()
	user := UserModel{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        normalizedEmail,
		Age:          input.Age,
		MobileNumber: input.MobileNumber,
		Photo:        input.Photo,
		PasswordHash: input.PasswordHash,
		Metadata:     datatypes.JSONMap(input.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, ErrEmailAlreadyExists
		}
		return models.User{}, err
	}

	return mapUserModel(user), nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, string, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, "", ErrUserNotFound
	}
	if err != nil {
		return models.User{}, "", err
	}
	return mapUserModel(user), user.PasswordHash, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUserModel(user), nil
}

func (r *Repository) CreateSession(ctx context.Context, session models.Session, clientInfo map[string]interface{}) error {
	rec := SessionModel{
		ID:         session.ID,
		UserID:     session.UserID,
		TokenID:    session.TokenID,
		LoginTime:  session.LoginTime,
		LogoutTime: session.LogoutTime,
		ExpiresAt:  session.ExpiresAt,
		ClientInfo: datatypes.JSONMap(clientInfo),
	}
	return r.db.WithContext(ctx).Omit("User").Create(&rec).Error
}

func (r *Repository) GetSession(ctx context.Context, tokenID string) (models.Session, error) {
	var rec SessionModel
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return mapSessionModel(rec), nil
}

// EndSession stamps the logout time on an open session. It reports false
// when no open session matched.
func (r *Repository) EndSession(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&SessionModel{}).
		Where("token_id = ? AND logout_time IS NULL", tokenID).
		Update("logout_time", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapUserModel(user UserModel) models.User {
	return models.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Age:          user.Age,
		MobileNumber: user.MobileNumber,
		Photo:        user.Photo,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func mapSessionModel(rec SessionModel) models.Session {
	return models.Session{
		ID:         rec.ID,
		UserID:     rec.UserID,
		TokenID:    rec.TokenID,
		LoginTime:  rec.LoginTime,
		LogoutTime: rec.LogoutTime,
		ExpiresAt:  rec.ExpiresAt,
	}
}
