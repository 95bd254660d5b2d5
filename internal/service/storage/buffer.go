package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lprserver/internal/config"
	"lprserver/internal/logger"
	"lprserver/internal/model"
	"lprserver/internal/repository"
)

// maxPendingBatches bounds how many batches worth of reads are kept while the
// repository keeps failing. The oldest reads are dropped first.
const maxPendingBatches = 10

// ReadBuffer collects plate reads in memory and writes them to the read
// repository in batches from the Run goroutine, either when the buffer fills
// up or on every tick. Add never touches the repository.
type ReadBuffer struct {
	reads      []model.PlateRead
	limit      int
	maxPending int
	interval   time.Duration
	full       chan struct{}
	mu         sync.Mutex
	flushMu    sync.Mutex
	logger     *logger.Logger
	readRepo   repository.ReadRepository
}

// NewReadBuffer creates a buffer flushing into readRepo.
func NewReadBuffer(config *config.Config, logger *logger.Logger, readRepo repository.ReadRepository) *ReadBuffer {
	limit := config.ReadBufferLimit
	if limit < 1 {
		limit = 1
	}
	interval := config.ReadFlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &ReadBuffer{
		reads:      make([]model.PlateRead, 0, limit),
		limit:      limit,
		maxPending: limit * maxPendingBatches,
		interval:   interval,
		full:       make(chan struct{}, 1),
		logger:     logger,
		readRepo:   readRepo,
	}
}

// Run flushes on every tick and whenever Add reports a full buffer, until ctx
// is cancelled, then flushes once more.
func (s *ReadBuffer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.full:
			s.Flush()
		case <-ctx.Done():
			s.Flush()
			return
		}
	}
}

// Add queues a read, assigning an ID and timestamp when missing, and returns
// the ID. A full buffer wakes Run; Add itself never blocks on storage.
func (s *ReadBuffer) Add(read model.PlateRead) string {
	if read.ID == "" {
		read.ID = uuid.NewString()
	}
	if read.Timestamp.IsZero() {
		read.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	s.reads = append(s.reads, read)
	s.trimLocked()
	pending := len(s.reads)
	s.mu.Unlock()

	if pending >= s.limit {
		select {
		case s.full <- struct{}{}:
		default:
		}
	}
	return read.ID
}

// Pending is the number of reads not yet written.
func (s *ReadBuffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reads)
}

// Flush writes every buffered read and returns how many were saved. On error
// the reads are put back in front of anything added meanwhile.
func (s *ReadBuffer) Flush() int {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.reads
	s.reads = make([]model.PlateRead, 0, s.limit)
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	if err := s.readRepo.InsertBatch(batch); err != nil {
		s.logger.Error("Error saving %d plate reads to database: %v", len(batch), err)
		s.mu.Lock()
		s.reads = append(batch, s.reads...)
		s.trimLocked()
		s.mu.Unlock()
		return 0
	}

	s.logger.Info("Flushed %d plate reads to database", len(batch))
	return len(batch)
}

func (s *ReadBuffer) trimLocked() {
	overflow := len(s.reads) - s.maxPending
	if overflow <= 0 {
		return
	}
	s.logger.Warning("Read buffer over capacity, dropping %d oldest plate reads", overflow)
	s.reads = append([]model.PlateRead(nil), s.reads[overflow:]...)
}
