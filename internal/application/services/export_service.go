package services

import (
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
)

// ExportResult is the bulk export response shape: entries newest-first,
// the count, and the effective filters echoed back.
type ExportResult struct {
	Entries []*entry.Entry `json:"entries"`
	Count   int            `json:"count"`
	Topic   string         `json:"topicFilter,omitempty"`
	Since   *time.Time     `json:"since,omitempty"`
	Limit   int            `json:"limit"`
}

// ExportService serves filtered, limited retrieval of the entry log for
// freshly connected and polling observers. It reads the same log as the
// live broadcast path.
type ExportService struct {
	entries *EntryService
	hardMax int
	logger  *logging.ChanneledLogger
}

// NewExportService creates the export reader. hardMax bounds response size
// regardless of the client-requested limit.
func NewExportService(entries *EntryService, hardMax int, logger *logging.ChanneledLogger) *ExportService {
	return &ExportService{entries: entries, hardMax: hardMax, logger: logger}
}

// Query returns up to min(limit, hardMax) entries newest-first. A zero or
// negative limit means "as many as allowed".
func (s *ExportService) Query(topic string, since *time.Time, limit int) ExportResult {
	effective := limit
	if effective <= 0 || effective > s.hardMax {
		effective = s.hardMax
	}

	results := s.entries.Query(topic, since, effective)
	if results == nil {
		results = []*entry.Entry{}
	}

	s.logger.Pipeline().Debug("Bulk export served", "topic", topic, "limit", effective, "count", len(results))
	return ExportResult{
		Entries: results,
		Count:   len(results),
		Topic:   topic,
		Since:   since,
		Limit:   effective,
	}
}
