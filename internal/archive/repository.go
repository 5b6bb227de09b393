package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"codeberg.org/mutker/heartbeatd/internal/serializer"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
	closed bool
	now    func() time.Time
}

func NewRepository(ctx context.Context, cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(ctx, db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Heartbeat archive initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (r *repository) Record(ctx context.Context, event serializer.Event) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errFactory.WithMessage(ErrStorageAccess, "archive is closed")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	rollback := func(cause error) error {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, cause)
	}

	res, err := tx.ExecContext(ctx, insertHeartbeatSQL,
		r.now().UnixMilli(),
		int64(event.Sequence),
		int64(event.UptimeMs),
	)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to insert heartbeat")
		return rollback(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return rollback(err)
	}

	stmt, err := tx.PrepareContext(ctx, insertValueSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return rollback(err)
	}
	defer stmt.Close()

	for i, v := range event.Values {
		if _, err := stmt.ExecContext(ctx,
			id,
			i,
			v.Name,
			int64(v.Type),
			v.Int64(),
			boolToInt(v.Running),
		); err != nil {
			r.logger.Error().Err(err).Str("metric", v.Name).Msg("Failed to insert metric value")
			return rollback(err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().
		Int64("id", id).
		Uint64("sequence", event.Sequence).
		Int("values", len(event.Values)).
		Msg("Archived heartbeat")

	return nil
}

func (r *repository) Recent(ctx context.Context, n int) ([]Record, error) {
	errFactory := errors.New()

	if n <= 0 {
		n = defaultRecentLimit
	}
	if n > maxRecentLimit {
		n = maxRecentLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errFactory.WithMessage(ErrStorageAccess, "archive is closed")
	}

	rows, err := r.db.QueryContext(ctx, selectRecentSQL, n)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	records := make([]Record, 0, n)
	for rows.Next() {
		var (
			id         int64
			recordedAt int64
			sequence   int64
			uptime     int64
			name       sql.NullString
			typ        sql.NullInt64
			value      sql.NullInt64
			running    sql.NullInt64
		)
		if err := rows.Scan(&id, &recordedAt, &sequence, &uptime, &name, &typ, &value, &running); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		if len(records) == 0 || records[len(records)-1].ID != id {
			records = append(records, Record{
				ID:         id,
				RecordedAt: time.UnixMilli(recordedAt).UTC(),
				Event: serializer.Event{
					Sequence: uint64(sequence),
					UptimeMs: uint64(uptime),
				},
			})
		}

		// LEFT JOIN yields one NULL row for an event without values.
		if !name.Valid {
			continue
		}

		rec := &records[len(records)-1]
		rec.Event.Values = append(rec.Event.Values, toValue(name.String, typ.Int64, value.Int64, running.Int64 == 1))
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return records, nil
}

func toValue(name string, typ, value int64, running bool) heartbeat.Value {
	v := heartbeat.Value{Name: name, Type: heartbeat.MetricType(typ)}
	switch v.Type {
	case heartbeat.Signed:
		v.Signed = int32(value)
	case heartbeat.Timer:
		v.Unsigned = uint32(value)
		v.Running = running
	default:
		v.Unsigned = uint32(value)
	}
	return v
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Heartbeat archive closed gracefully")

	return nil
}

// Open returns a sqlite repository, or a no-op one when archiving is disabled.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Heartbeat archive disabled, using no-op repository")
		return noopRepository{}, nil
	}

	return NewRepository(ctx, cfg, log)
}

type noopRepository struct{}

func (noopRepository) Record(context.Context, serializer.Event) error {
	return nil
}

func (noopRepository) Recent(context.Context, int) ([]Record, error) {
	return nil, nil
}

func (noopRepository) Close() error {
	return nil
}
