package archive

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS heartbeats (
	       id           INTEGER PRIMARY KEY AUTOINCREMENT,
	       recorded_at  INTEGER NOT NULL,
	       sequence     INTEGER NOT NULL CHECK (typeof(sequence) = 'integer'),
	       uptime_ms    INTEGER NOT NULL CHECK (typeof(uptime_ms) = 'integer')
	   );
	   CREATE TABLE IF NOT EXISTS heartbeat_values (
	       heartbeat_id INTEGER NOT NULL REFERENCES heartbeats(id) ON DELETE CASCADE,
	       position     INTEGER NOT NULL,
	       name         TEXT NOT NULL,
	       type         INTEGER NOT NULL CHECK (type IN (0, 1, 2)),
	       value        INTEGER NOT NULL CHECK (typeof(value) = 'integer'),
	       running      INTEGER NOT NULL CHECK (running IN (0, 1)),
	       PRIMARY KEY (heartbeat_id, position)
	   );`

	insertHeartbeatSQL = `
    INSERT INTO heartbeats (recorded_at, sequence, uptime_ms)
    VALUES (?, ?, ?)`

	insertValueSQL = `
    INSERT INTO heartbeat_values (
        heartbeat_id, position, name, type, value, running
    ) VALUES (?, ?, ?, ?, ?, ?)`

	selectRecentSQL = `
    SELECT h.id, h.recorded_at, h.sequence, h.uptime_ms,
           v.name, v.type, v.value, v.running
    FROM (
        SELECT id, recorded_at, sequence, uptime_ms
        FROM heartbeats
        ORDER BY id DESC
        LIMIT ?
    ) h
    LEFT JOIN heartbeat_values v ON v.heartbeat_id = h.id
    ORDER BY h.id DESC, v.position ASC`
)

var schemaTables = []string{"heartbeat_values", "heartbeats", "schema_versions"}

// InitSchema creates a new database schema with the current version
func InitSchema(ctx context.Context, db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty database
func GetSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(ctx, db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
