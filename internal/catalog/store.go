// Package catalog owns the library database: songs, playlists and their
// ordered membership, settings, theme state and the artist aggregate.
//
// A Store is constructed explicitly and initialised once through Init.
// Every write runs inside a transaction that is retried with exponential
// backoff while SQLite reports lock contention.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cadence/internal/db"
)

var (
	ErrNotInitialized   = errors.New("catalog store is not initialized")
	ErrStoreBusy        = errors.New("catalog store is busy")
	ErrSongNotFound     = errors.New("song not found")
	ErrSongExists       = errors.New("song with this source uri already exists")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrNotInPlaylist    = errors.New("song is not in playlist")
	ErrSettingNotFound  = errors.New("setting not found")
	ErrArtistNotFound   = errors.New("artist not found")
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Options struct {
	Path        string
	BusyTimeout time.Duration
	Retry       RetryPolicy
	Logger      *slog.Logger
}

type Store struct {
	path      string
	dbOptions db.Options
	retry     RetryPolicy
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	database *sql.DB
	pending  *initRound

	// settingsWriteHook runs before each row write of a settings batch.
	settingsWriteHook func(attempt int, index int) error
}

type initRound struct {
	done chan struct{}
	err  error
}

func New(options Options) *Store {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:      options.Path,
		dbOptions: db.Options{BusyTimeout: options.BusyTimeout},
		retry:     options.Retry.normalized(),
		logger:    logger,
		now:       time.Now,
	}
}

// Init opens the database and applies migrations. It is safe to call from
// many goroutines: one caller runs the initialisation and the rest wait for
// its result. A failed attempt is not cached, so a later call retries.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.database != nil {
		s.mu.Unlock()
		return nil
	}

	if round := s.pending; round != nil {
		s.mu.Unlock()
		select {
		case <-round.done:
			return round.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	round := &initRound{done: make(chan struct{})}
	s.pending = round
	s.mu.Unlock()

	database, err := s.open(ctx)

	s.mu.Lock()
	if err == nil {
		s.database = database
	}
	round.err = err
	s.pending = nil
	s.mu.Unlock()
	close(round.done)

	return err
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	if s.path == "" {
		return nil, errors.New("init catalog store: database path is required")
	}

	database, err := db.Open(s.path, s.dbOptions)
	if err != nil {
		return nil, fmt.Errorf("init catalog store: %w", err)
	}

	if err := db.RunMigrationsContext(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("init catalog store: %w", err)
	}

	s.logger.Debug("catalog store ready", "path", s.path)
	return database, nil
}

func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.database != nil
}

// DB exposes the underlying handle to repositories sharing the database.
func (s *Store) DB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.database == nil {
		return nil, ErrNotInitialized
	}
	return s.database, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.database == nil {
		return nil
	}

	err := s.database.Close()
	s.database = nil
	return err
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

// withTx runs fn in a write transaction, retrying the whole transaction
// while the database reports lock contention.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx, attempt int) error) error {
	database, err := s.DB()
	if err != nil {
		return err
	}

	return s.withRetry(ctx, op, func(attempt int) error {
		tx, err := database.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", op, err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if err := fn(tx, attempt); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", op, err)
		}
		return nil
	})
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
