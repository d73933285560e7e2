// Package sqlite archives samples to a local database. Inserts are buffered
// and flushed in batches so archiving a fast acquisition never issues one
// transaction per sample.
package sqlite

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/okkola/labdaq/internal/errors"
	"codeberg.org/okkola/labdaq/internal/logger"
	"codeberg.org/okkola/labdaq/internal/sample"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultDirPerm       = 0o755
	defaultBatchSize     = 128
	defaultFlushInterval = 5 * time.Second
)

type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

type Archive struct {
	db            *sql.DB
	cfg           Config
	mu            sync.Mutex
	buffer        []sample.Sample
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// New opens (or creates) the archive database and starts the flusher.
func New(cfg Config) (*Archive, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", cfg.DBPath).Int("batch_size", cfg.BatchSize).
		Msg("Sample archive initialized")

	a := &Archive{
		db:            db,
		cfg:           cfg,
		buffer:        make([]sample.Sample, 0, cfg.BatchSize),
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}
	go a.flusher()

	return a, nil
}

// Publish buffers the batch, flushing when the buffer reaches the batch size.
func (a *Archive) Publish(samples []sample.Sample) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, samples...)

	if len(a.buffer) >= a.cfg.BatchSize {
		return a.flush()
	}

	return nil
}

// Close drains the buffer, checkpoints the WAL and closes the database.
func (a *Archive) Close() error {
	errFactory := errors.New()

	close(a.shutdownChan)
	a.flushTicker.Stop()
	<-a.flushDoneChan

	if _, err := a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	if err := a.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

func (a *Archive) flusher() {
	defer close(a.flushDoneChan)

	for {
		select {
		case <-a.flushTicker.C:
			a.mu.Lock()
			if err := a.flush(); err != nil {
				logger.Error().Err(err).Msg("Failed to flush sample archive")
			}
			a.mu.Unlock()
		case <-a.shutdownChan:
			a.mu.Lock()
			if err := a.flush(); err != nil {
				logger.Error().Err(err).Msg("Failed to flush sample archive on shutdown")
			}
			a.mu.Unlock()
			return
		}
	}
}

// flush writes the buffer in one transaction. Caller holds the mutex.
func (a *Archive) flush() error {
	if len(a.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := a.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		tx.Rollback()
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, s := range a.buffer {
		// NaN (out-of-domain) archives as NULL.
		value := sql.NullFloat64{Float64: s.Value, Valid: !math.IsNaN(s.Value)}
		_, err := stmt.Exec(s.DeviceID, s.Channel, s.Timestamp.UnixNano(),
			s.Raw, value, s.Unit, boolToInt(s.Valid))
		if err != nil {
			tx.Rollback()
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	a.buffer = a.buffer[:0]

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
