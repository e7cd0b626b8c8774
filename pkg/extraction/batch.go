package extraction

import (
	"context"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/common/models"
	"github.com/mediscanner/api/pkg/observability/metrics"
)

// Extractor turns one image into raw model text.
type Extractor interface {
	Extract(ctx context.Context, image []byte, filename string) (string, error)
}

// Image is one fetched upload.
type Image struct {
	Data     []byte
	Filename string
}

// Processor runs extraction and normalization over a batch, one image at a
// time.
type Processor struct {
	extractor Extractor
}

func NewProcessor(extractor Extractor) *Processor {
	return &Processor{extractor: extractor}
}

// ProcessBatch returns exactly one record per image, in input order, with
// SerialNo set to the image's index. Extraction failures become empty
// records and never stop the batch.
func (p *Processor) ProcessBatch(ctx context.Context, images []Image) []models.Prescription {
	results := make([]models.Prescription, 0, len(images))
	for idx, img := range images {
		rec := p.extract(ctx, img)
		rec.SerialNo = idx
		if rec.IsEmpty() {
			metrics.ObserveEmptyRecord()
		}
		results = append(results, rec)
	}
	return results
}

func (p *Processor) extract(ctx context.Context, img Image) models.Prescription {
	log := logger.FromContext(ctx).WithField("filename", img.Filename)

	raw, err := p.extractor.Extract(ctx, img.Data, img.Filename)
	if err != nil {
		metrics.ObserveExtractionFailure()
		log.WithError(err).Warn("Extraction failed, using empty record")
		return models.EmptyPrescription(img.Filename)
	}

	rec, err := Parse(raw, img.Filename)
	if err != nil {
		metrics.ObserveExtractionFailure()
		log.WithError(err).WithField("raw_size", len(raw)).Warn("Could not parse model output, using empty record")
		return models.EmptyPrescription(img.Filename)
	}

	log.WithField("medicines", len(rec.Medicines)).Debug("Prescription extracted")
	return rec
}
