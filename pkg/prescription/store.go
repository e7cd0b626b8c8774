package prescription

import (
	"context"
	"errors"
	"time"

	"github.com/mediscanner/api/pkg/common/models"
)

var ErrNotFound = errors.New("prescription record not found")

// Page selects a window of results ordered by creation time, newest first.
type Page struct {
	Skip  int64
	Limit int64
}

// SearchFilter narrows a search. Empty fields are ignored. Name filters are
// case-insensitive substring matches.
type SearchFilter struct {
	UserID       string
	DoctorName   string
	HospitalName string
	MedicineName string
	Date         string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// Store persists prescription records. Writes touch a single record.
type Store interface {
	Insert(ctx context.Context, rec models.Prescription) (models.Prescription, error)
	FindByID(ctx context.Context, id string) (models.Prescription, error)
	FindAll(ctx context.Context, page Page) ([]models.Prescription, error)
	FindByOwner(ctx context.Context, ownerID string, page Page) ([]models.Prescription, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (models.Prescription, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, filter SearchFilter, page Page) ([]models.Prescription, error)
	Count(ctx context.Context, filter SearchFilter) (int64, error)
}
