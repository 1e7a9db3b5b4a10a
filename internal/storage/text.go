package storage

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// TextSink appends records to a UTF-8 text file as "header\nbody\n\n".
// Each record goes out in a single write and the buffer is flushed after
// every batch, so an aborted run leaves only whole records on disk.
type TextSink struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	mu     sync.Mutex
	closed bool
	count  int
	logger *slog.Logger
}

// NewTextSink creates (or truncates) the file at outputPath.
func NewTextSink(outputPath string, logger *slog.Logger) (*TextSink, error) {
	return openTextSink(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logger)
}

// AppendTextSink opens outputPath for appending, creating it if needed.
// Resumed runs use it to continue an earlier export.
func AppendTextSink(outputPath string, logger *slog.Logger) (*TextSink, error) {
	return openTextSink(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logger)
}

func openTextSink(outputPath string, flag int, logger *slog.Logger) (*TextSink, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "text", Err: fmt.Errorf("create output dir: %w", err)}
	}

	f, err := os.OpenFile(outputPath, flag, 0o644)
	if err != nil {
		return nil, &types.StorageError{Backend: "text", Err: fmt.Errorf("open output file: %w", err)}
	}

	return &TextSink{
		path:   outputPath,
		file:   f,
		w:      bufio.NewWriter(f),
		logger: logger.With("component", "text_sink"),
	}, nil
}

func (s *TextSink) Name() string { return "text" }

// Path returns the output file path.
func (s *TextSink) Path() string { return s.path }

// Count returns the number of records written so far.
func (s *TextSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *TextSink) Append(records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrSinkClosed
	}

	for _, rec := range records {
		if _, err := s.w.WriteString(rec.String()); err != nil {
			return &types.StorageError{Backend: "text", Err: fmt.Errorf("write record: %w", err)}
		}
		s.count++
	}
	if err := s.w.Flush(); err != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("flush: %w", err)}
	}

	s.logger.Debug("records appended", "count", len(records), "total", s.count)
	return nil
}

func (s *TextSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.logger.Info("text written", "path", s.path, "records", s.count)

	if flushErr != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("flush: %w", flushErr)}
	}
	if closeErr != nil {
		return &types.StorageError{Backend: "text", Err: fmt.Errorf("close: %w", closeErr)}
	}
	return nil
}
