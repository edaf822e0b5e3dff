// Package store owns all write access to the durable usage database. It
// buffers incoming samples in memory, commits them in atomic batches, derives
// daily per-application summaries, and enforces the sample retention horizon.
// Readers go through the read-only query methods; flush, rollup, and retention
// are serialized against each other by a single writer mutex.
package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/datamon/datamon/internal/errors"
	"github.com/datamon/datamon/internal/logging"
)

// DateLayout is the calendar-date format used for daily summaries. Date
// boundaries are evaluated in local time.
const DateLayout = "2006-01-02"

// insertBatchSize bounds the number of rows per INSERT statement inside a
// flush transaction. The transaction itself is still all-or-nothing.
const insertBatchSize = 500

// Options configures a Store.
type Options struct {
	// RetentionDays is the sample retention horizon.
	RetentionDays int
	// BufferCap caps the in-memory write buffer. When full, the oldest
	// buffered samples are dropped and the loss is logged.
	BufferCap int
	// FlushRetries bounds how many flush attempts a failed batch survives
	// before it is dropped.
	FlushRetries int
	// Now is the clock source; defaults to time.Now. Tests override it.
	Now func() time.Time
}

// Store is the single writer over the usage database plus the in-memory
// write buffer feeding it.
type Store struct {
	db     *gorm.DB
	opts   Options
	logger logging.Logger
	now    func() time.Time

	mu      sync.Mutex // guards buffer and retries
	buffer  []Sample
	retries int

	writeMu sync.Mutex // serializes flush/rollup/retention
}

// Open opens (creating if necessary) the SQLite database at path, migrates
// the schema, and returns a Store. Opening is the only storage failure
// treated as fatal by the caller: without a store there is no pipeline.
func Open(path string, opts Options, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewStorageError("open", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.NewStorageError("open", err)
	}

	// WAL allows concurrent readers alongside the single writer; the busy
	// timeout keeps short lock contention from surfacing as errors.
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	if err := db.AutoMigrate(&Sample{}, &DailySummary{}); err != nil {
		return nil, apperrors.NewStorageError("open", err)
	}

	s := &Store{
		db:     db,
		opts:   opts,
		logger: logger,
		now:    opts.Now,
	}
	logger.Info("store opened", logging.String("path", path), logging.Int("retention_days", opts.RetentionDays))
	return s, nil
}

// Close flushes nothing and releases the underlying database handle. Callers
// are expected to run a final Flush first.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.NewStorageError("close", err)
	}
	return apperrors.NewStorageError("close", sqlDB.Close())
}

// Enqueue appends samples to the in-memory write buffer. It never blocks on
// storage and never fails; when the buffer cap is exceeded the oldest
// buffered samples are dropped to bound memory, and the number dropped is
// returned so callers can account the loss.
func (s *Store) Enqueue(samples []Sample) (dropped int) {
	if len(samples) == 0 {
		return 0
	}
	s.mu.Lock()
	s.buffer = append(s.buffer, samples...)
	if over := len(s.buffer) - s.opts.BufferCap; over > 0 && s.opts.BufferCap > 0 {
		dropped = over
		s.buffer = append([]Sample(nil), s.buffer[over:]...)
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("write buffer full, oldest samples dropped",
			logging.Int("dropped", dropped), logging.Int("cap", s.opts.BufferCap))
	}
	return dropped
}

// BufferLen reports the number of samples currently buffered.
func (s *Store) BufferLen() int {
	s.mu.Lock()
	n := len(s.buffer)
	s.mu.Unlock()
	return n
}

// Flush drains the write buffer and commits it as one transactional batch:
// either every drained sample becomes visible to readers or none does. On
// failure the batch is requeued at the front of the buffer (preserving tick
// order) and retried on subsequent flushes, up to the configured retry bound;
// after that the batch is dropped and the loss logged. Returns the number of
// samples committed.
func (s *Store) Flush() (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&batch, insertBatchSize).Error
	})
	if err == nil {
		s.mu.Lock()
		s.retries = 0
		s.mu.Unlock()
		s.logger.Debug("flushed batch", logging.Int("samples", len(batch)))
		return len(batch), nil
	}

	// IDs may have been assigned before the transaction rolled back; clear
	// them so the retry inserts fresh rows.
	for i := range batch {
		batch[i].ID = 0
	}

	s.mu.Lock()
	s.retries++
	exhausted := s.retries > s.opts.FlushRetries
	if exhausted {
		s.retries = 0
	} else {
		s.buffer = append(batch, s.buffer...)
	}
	s.mu.Unlock()

	if exhausted {
		s.logger.Error("flush retries exhausted, dropping batch", err,
			logging.Int("dropped", len(batch)))
	} else {
		s.logger.Warn("flush failed, batch requeued", logging.Err(err))
	}
	return 0, apperrors.NewStorageError("flush", err)
}

// RollupDay idempotently (re)computes the daily summary rows for the given
// local calendar date ("2006-01-02") by re-scanning that date's sample rows
// grouped by application identity. Existing rows for the date are replaced in
// the same transaction, so running it twice, or again after a crash mid-run,
// yields identical results.
func (s *Store) RollupDay(date string) error {
	day, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return apperrors.ValidationError{Field: "date", Message: err.Error()}
	}
	start := day.Unix()
	end := day.AddDate(0, 0, 1).Unix()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date = ?", date).Delete(&DailySummary{}).Error; err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO daily_summaries (date, app_name, bytes_sent, bytes_recv, sample_count)
			SELECT ?, COALESCE(app_name, process_name), SUM(bytes_sent), SUM(bytes_recv), COUNT(*)
			FROM samples
			WHERE timestamp >= ? AND timestamp < ?
			GROUP BY COALESCE(app_name, process_name)`,
			date, start, end).Error
	})
	if err != nil {
		return apperrors.NewStorageError("rollup", err)
	}
	s.logger.Info("daily rollup complete", logging.String("date", date))
	return nil
}

// EnforceRetention deletes sample rows older than now minus the retention
// horizon. Daily summaries are deliberately untouched: raw samples are
// expendable, rollups are the durable record. Returns the number of rows
// deleted.
func (s *Store) EnforceRetention(now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -s.opts.RetentionDays).Unix()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res := s.db.Where("timestamp < ?", cutoff).Delete(&Sample{})
	if res.Error != nil {
		return 0, apperrors.NewStorageError("retention", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("retention cleanup removed old samples",
			logging.Int64("deleted", res.RowsAffected),
			logging.Int("horizon_days", s.opts.RetentionDays))
	}
	return res.RowsAffected, nil
}

// QueryRecent returns committed samples with timestamps inside
// [now-windowSeconds, now], ordered ascending by timestamp. Samples still in
// the write buffer are invisible until flushed.
func (s *Store) QueryRecent(windowSeconds int) ([]Sample, error) {
	if windowSeconds < 0 {
		return nil, apperrors.ValidationError{Field: "window", Message: "must be non-negative"}
	}
	now := s.now().Unix()
	var samples []Sample
	err := s.db.
		Where("timestamp >= ? AND timestamp <= ?", now-int64(windowSeconds), now).
		Order("timestamp ASC").
		Find(&samples).Error
	if err != nil {
		return nil, apperrors.NewStorageError("query", err)
	}
	return samples, nil
}

// QuerySummary returns all daily summary rows for the given date, ordered by
// total byte volume descending.
func (s *Store) QuerySummary(date string) ([]DailySummary, error) {
	var rows []DailySummary
	err := s.db.
		Where("date = ?", date).
		Order("(bytes_sent + bytes_recv) DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageError("query", err)
	}
	return rows, nil
}

// AvailableDates returns the distinct dates having summary rows, newest first.
func (s *Store) AvailableDates() ([]string, error) {
	var dates []string
	err := s.db.Model(&DailySummary{}).
		Distinct("date").
		Order("date DESC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, apperrors.NewStorageError("query", err)
	}
	return dates, nil
}
