package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	batchesProcessed   atomic.Int64
	imagesProcessed    atomic.Int64
	extractionFailures atomic.Int64
	emptyRecords       atomic.Int64
	recordsPersisted   atomic.Int64
	fetchFailures      atomic.Int64
	eventsPublished    atomic.Int64
	eventsFailed       atomic.Int64
)

// Reset zeroes every counter. Used by tests.
func Reset() {
	for _, c := range []*atomic.Int64{
		&batchesProcessed, &imagesProcessed, &extractionFailures, &emptyRecords,
		&recordsPersisted, &fetchFailures, &eventsPublished, &eventsFailed,
	} {
		c.Store(0)
	}
}

func ObserveBatch(images int) {
	batchesProcessed.Add(1)
	imagesProcessed.Add(int64(images))
}

func ObserveExtractionFailure() { extractionFailures.Add(1) }

func ObserveEmptyRecord() { emptyRecords.Add(1) }

func ObserveRecordsPersisted(n int) { recordsPersisted.Add(int64(n)) }

func ObserveFetchFailure() { fetchFailures.Add(1) }

func ObserveEventPublish(err error) {
	if err != nil {
		eventsFailed.Add(1)
		return
	}
	eventsPublished.Add(1)
}

// Snapshot returns current counter values keyed by metric name.
func Snapshot() map[string]int64 {
	out := make(map[string]int64, len(counters()))
	for _, c := range counters() {
		out[c.name] = c.value.Load()
	}
	return out
}

type counter struct {
	name  string
	help  string
	value *atomic.Int64
}

func counters() []counter {
	return []counter{
		{"mediscanner_batches_processed_total", "Number of prescription upload batches processed.", &batchesProcessed},
		{"mediscanner_images_processed_total", "Number of prescription images sent to extraction.", &imagesProcessed},
		{"mediscanner_extraction_failures_total", "Number of images whose extraction or parsing failed.", &extractionFailures},
		{"mediscanner_empty_records_total", "Number of empty records produced by extraction.", &emptyRecords},
		{"mediscanner_records_persisted_total", "Number of prescription records stored.", &recordsPersisted},
		{"mediscanner_image_fetch_failures_total", "Number of image downloads that failed.", &fetchFailures},
		{"mediscanner_events_published_total", "Number of prescription events published.", &eventsPublished},
		{"mediscanner_events_failed_total", "Number of prescription events that could not be published.", &eventsFailed},
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, c := range counters() {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.value.Load())
	}
}
