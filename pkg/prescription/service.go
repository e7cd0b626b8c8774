package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/common/models"
	"github.com/mediscanner/api/pkg/extraction"
	"github.com/mediscanner/api/pkg/observability/metrics"
)

const (
	EventExtracted = "prescription.extracted"
	eventSource    = "mediscanner-api"

	DefaultListLimit = 100
	MaxListLimit     = 500
	DefaultPageSize  = 10
	MaxPageSize      = 100
)

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type BatchProcessor interface {
	ProcessBatch(ctx context.Context, images []extraction.Image) []models.Prescription
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source, partitionKey string, data map[string]interface{}) error
}

type Service struct {
	validator *Validator
	fetcher   ImageFetcher
	processor BatchProcessor
	store     Store
	events    EventPublisher
}

// NewService wires the upload pipeline. events may be nil.
func NewService(validator *Validator, fetcher ImageFetcher, processor BatchProcessor, store Store, events EventPublisher) *Service {
	return &Service{
		validator: validator,
		fetcher:   fetcher,
		processor: processor,
		store:     store,
		events:    events,
	}
}

// Upload validates the request, downloads every image, extracts one record
// per image and stores each record for userID.
//
// Validation and download failures reject the whole request before any
// record is stored. Extraction failures produce empty records. A storage
// failure aborts the remaining records; earlier ones stay stored.
func (s *Service) Upload(ctx context.Context, userID string, req models.PrescriptionUploadRequest) ([]models.Prescription, error) {
	files, err := s.validator.Files(req)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id": userID,
		"images":  len(files),
	})

	images := make([]extraction.Image, 0, len(files))
	for _, f := range files {
		data, err := s.fetcher.Fetch(ctx, f.URL)
		if err != nil {
			metrics.ObserveFetchFailure()
			log.WithError(err).WithField("url", f.URL).Warn("Image download failed")
			return nil, err
		}
		images = append(images, extraction.Image{Data: data, Filename: f.Name})
	}

	metrics.ObserveBatch(len(images))
	records := s.processor.ProcessBatch(ctx, images)
	if len(records) != len(files) {
		return nil, fmt.Errorf("extraction returned %d records for %d images", len(records), len(files))
	}

	saved := make([]models.Prescription, 0, len(records))
	for i := range records {
		rec := records[i]
		rec.AttachProvenance(files[i])
		rec.UserID = userID

		stored, err := s.store.Insert(ctx, rec)
		if err != nil {
			metrics.ObserveRecordsPersisted(len(saved))
			return nil, fmt.Errorf("persisting record %d: %w", i, err)
		}
		saved = append(saved, stored)
		s.publishExtracted(ctx, stored)
	}

	metrics.ObserveRecordsPersisted(len(saved))
	log.WithField("records", len(saved)).Info("Prescription batch stored")
	return saved, nil
}

func (s *Service) publishExtracted(ctx context.Context, rec models.Prescription) {
	if s.events == nil {
		return
	}
	err := s.events.PublishEvent(ctx, EventExtracted, eventSource, rec.UserID, map[string]interface{}{
		"record_id":      rec.ID,
		"user_id":        rec.UserID,
		"serial_no":      rec.SerialNo,
		"medicine_count": len(rec.Medicines),
		"empty":          rec.IsEmpty(),
	})
	metrics.ObserveEventPublish(err)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("record_id", rec.ID).Warn("failed to publish extraction event")
	}
}

// Create stores a manually entered record after strict validation.
func (s *Service) Create(ctx context.Context, userID string, in models.MedicalRecordInput) (models.Prescription, error) {
	if err := in.Validate(); err != nil {
		return models.Prescription{}, NewValidationError(err)
	}

	rec, err := s.store.Insert(ctx, in.ToPrescription(userID))
	if err != nil {
		return models.Prescription{}, err
	}
	metrics.ObserveRecordsPersisted(1)
	return rec, nil
}

// List returns the caller's records, newest first.
func (s *Service) List(ctx context.Context, userID string, skip, limit int) ([]models.Prescription, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.FindByOwner(ctx, userID, Page{Skip: int64(skip), Limit: int64(limit)})
}

// Get returns the record when it belongs to userID. Records of other users
// are reported as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (models.Prescription, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return models.Prescription{}, err
	}
	if rec.UserID != userID {
		return models.Prescription{}, ErrNotFound
	}
	return rec, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, patch models.PrescriptionPatch) (models.Prescription, error) {
	if patch.Medicines != nil {
		for i, m := range *patch.Medicines {
			if m.Quantity != nil && *m.Quantity < 0 {
				return models.Prescription{}, NewValidationError(fmt.Errorf("medicines[%d].quantity must not be negative", i))
			}
		}
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return models.Prescription{}, err
	}
	return s.store.Update(ctx, id, patch.Fields())
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Search runs filter scoped to userID and returns one page plus its
// metadata. page is 1-based.
func (s *Service) Search(ctx context.Context, userID string, filter SearchFilter, page, limit int) ([]models.Prescription, models.Pagination, error) {
	if page < 1 {
		return nil, models.Pagination{}, NewValidationError(errors.New("page must be >= 1"))
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, models.Pagination{}, NewValidationError(fmt.Errorf("limit must be between 1 and %d", MaxPageSize))
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return nil, models.Pagination{}, NewValidationError(errors.New("dateTo must not be before dateFrom"))
	}

	filter.UserID = userID
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	records, err := s.store.Search(ctx, filter, Page{Skip: int64((page - 1) * limit), Limit: int64(limit)})
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return records, models.NewPagination(page, limit, total), nil
}
