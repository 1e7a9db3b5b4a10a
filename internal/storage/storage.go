package storage

import (
	"github.com/IshaanNene/commentgoat/internal/types"
)

// ExportSink receives the records of one run.
type ExportSink interface {
	// Append persists a batch of records in order.
	Append(records []types.Record) error

	// Close flushes pending writes and releases resources. Only the first
	// call has an effect.
	Close() error

	// Name returns the sink identifier.
	Name() string
}
