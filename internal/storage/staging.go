package storage

import (
	"log/slog"
	"sync"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// StagingSink keeps records in memory. Preload runs use it to collect the
// next pages before they are shown or exported.
type StagingSink struct {
	records []types.Record
	mu      sync.Mutex
	closed  bool
	logger  *slog.Logger
}

// NewStagingSink creates an empty in-memory sink.
func NewStagingSink(logger *slog.Logger) *StagingSink {
	return &StagingSink{
		records: make([]types.Record, 0),
		logger:  logger.With("component", "staging_sink"),
	}
}

func (s *StagingSink) Name() string { return "staging" }

func (s *StagingSink) Append(records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrSinkClosed
	}
	s.records = append(s.records, records...)
	s.logger.Debug("records staged", "count", len(records), "total", len(s.records))
	return nil
}

func (s *StagingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *StagingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Records returns a copy of the staged records.
func (s *StagingSink) Records() []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Record, len(s.records))
	copy(out, s.records)
	return out
}
