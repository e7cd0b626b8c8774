package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWritePrometheus(t *testing.T) {
	Reset()
	ObserveBatch(3)
	ObserveExtractionFailure()
	ObserveRecordsPersisted(3)
	ObserveEventPublish(nil)
	ObserveEventPublish(errors.New("broker down"))

	rec := httptest.NewRecorder()
	WritePrometheus(rec)

	body := rec.Body.String()
	assert.Equal(t, "text/plain; version=0.0.4", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "# TYPE mediscanner_batches_processed_total counter")
	assert.Contains(t, body, "mediscanner_images_processed_total 3\n")
	assert.Contains(t, body, "mediscanner_extraction_failures_total 1\n")
	assert.Contains(t, body, "mediscanner_events_failed_total 1\n")
}

func TestSnapshotAfterReset(t *testing.T) {
	ObserveFetchFailure()
	Reset()

	snap := Snapshot()
	assert.Len(t, snap, 8)
	assert.Zero(t, snap["mediscanner_image_fetch_failures_total"])
}
