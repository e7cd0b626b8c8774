package prescription

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mediscanner/api/pkg/common/models"
)

// memoryStore is an in-memory Store used by the service and handler tests.
type memoryStore struct {
	mu        sync.Mutex
	records   map[string]models.Prescription
	failAfter int
	inserts   int
	clock     time.Time
}

var _ Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:   make(map[string]models.Prescription),
		failAfter: -1,
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) Insert(_ context.Context, rec models.Prescription) (models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAfter >= 0 && s.inserts >= s.failAfter {
		return models.Prescription{}, errors.New("write concern error")
	}
	s.inserts++
	s.clock = s.clock.Add(time.Second)
	now := s.clock
	rec.ID = primitive.NewObjectID().Hex()
	rec.CreatedAt = &now
	rec.UpdatedAt = &now
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return models.Prescription{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) FindAll(ctx context.Context, page Page) ([]models.Prescription, error) {
	return s.Search(ctx, SearchFilter{}, page)
}

func (s *memoryStore) FindByOwner(ctx context.Context, ownerID string, page Page) ([]models.Prescription, error) {
	return s.Search(ctx, SearchFilter{UserID: ownerID}, page)
}

func (s *memoryStore) Update(_ context.Context, id string, fields map[string]interface{}) (models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return models.Prescription{}, ErrNotFound
	}
	if v, ok := fields["doctorName"].(string); ok {
		rec.DoctorName = &v
	}
	if v, ok := fields["medicines"].([]models.Medicine); ok {
		rec.Medicines = v
	}
	s.records[id] = rec
	return rec, nil
}

func (s *memoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *memoryStore) Search(_ context.Context, filter SearchFilter, page Page) ([]models.Prescription, error) {
	matched := s.match(filter)
	if page.Skip > int64(len(matched)) {
		return []models.Prescription{}, nil
	}
	matched = matched[page.Skip:]
	if page.Limit > 0 && int64(len(matched)) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, nil
}

func (s *memoryStore) Count(_ context.Context, filter SearchFilter) (int64, error) {
	return int64(len(s.match(filter))), nil
}

func (s *memoryStore) match(filter SearchFilter) []models.Prescription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Prescription{}
	for _, rec := range s.records {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.DoctorName != "" && (rec.DoctorName == nil ||
			!strings.Contains(strings.ToLower(*rec.DoctorName), strings.ToLower(filter.DoctorName))) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(*out[j].CreatedAt) })
	return out
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
