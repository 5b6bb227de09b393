package archive

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("archive_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("archive_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("archive_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("archive_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("archive_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("archive_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// Drain Errors
	ErrDrainFailed = errors.ErrorCode("archive_drain_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidDBPath:          "Invalid archive database path",
		ErrSchemaInitFailed:       "Failed to initialize archive schema",
		ErrSchemaValidationFailed: "Failed to validate archive schema",
		ErrSchemaMigrationFailed:  "Failed to migrate archive schema",
		ErrTransactionFailed:      "Archive transaction failed",
		ErrStorageAccess:          "Failed to access archive",
		ErrDrainFailed:            "Failed to drain event storage",
	})
}
